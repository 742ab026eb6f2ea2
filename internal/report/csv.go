// Package report renders finished runs: CSV exports, a JSON result file
// and a styled console summary.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/AElnamaki/simulate/internal/agent"
	"github.com/AElnamaki/simulate/internal/sim"
)

// CSVManager writes run exports under basePath/csv/.
type CSVManager struct {
	basePath string
}

func NewCSVManager(basePath string) *CSVManager {
	return &CSVManager{basePath: basePath}
}

// WriteStepMetrics exports one row per tick.
func (c *CSVManager) WriteStepMetrics(runID string, records []sim.TickRecord) (string, error) {
	dirPath := filepath.Join(c.basePath, "csv", "steps")
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %v", err)
	}

	filename := fmt.Sprintf("%s_steps_%d_records_%s.csv",
		runID, len(records), time.Now().Format("20060102_150405"))
	filePath := filepath.Join(dirPath, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{
		"Tick", "Price", "ReserveRatio", "Volume",
		"Swaps", "LiquidityAdds", "LiquidityRemoves", "Errors",
	}
	if err := writer.Write(headers); err != nil {
		return "", fmt.Errorf("failed to write headers: %v", err)
	}

	for _, rec := range records {
		m := rec.Metrics
		row := []string{
			strconv.Itoa(m.Tick),
			strconv.FormatFloat(m.Price, 'f', 6, 64),
			strconv.FormatFloat(m.ReserveRatio, 'f', 6, 64),
			strconv.FormatUint(m.Volume, 10),
			strconv.Itoa(m.Swaps),
			strconv.Itoa(m.LiquidityAdds),
			strconv.Itoa(m.LiquidityRemoves),
			strconv.Itoa(m.Errors),
		}
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write row: %v", err)
		}
	}

	return filePath, nil
}

// WriteAgentSteps exports every agent's performance at every tick, one row
// per agent per tick.
func (c *CSVManager) WriteAgentSteps(runID string, records []sim.TickRecord) (string, error) {
	dirPath := filepath.Join(c.basePath, "csv", "agent_steps")
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %v", err)
	}

	filename := fmt.Sprintf("%s_agent_steps_%s.csv", runID, time.Now().Format("20060102_150405"))
	filePath := filepath.Join(dirPath, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{
		"Tick", "AgentID", "AgentType", "PnL", "GasUsed", "TxCount", "TradeCount", "ImpermanentLoss",
	}
	if err := writer.Write(headers); err != nil {
		return "", fmt.Errorf("failed to write headers: %v", err)
	}

	for _, rec := range records {
		ids := make([]string, 0, len(rec.Performance))
		for id := range rec.Performance {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			snap := rec.Performance[id]
			il := ""
			if snap.ImpermanentLoss != nil {
				il = strconv.FormatFloat(*snap.ImpermanentLoss, 'f', 6, 64)
			}
			row := []string{
				strconv.Itoa(rec.Tick),
				snap.AgentID,
				string(snap.AgentType),
				snap.PnL.String(),
				strconv.FormatUint(snap.GasUsed, 10),
				strconv.FormatUint(snap.TxCount, 10),
				strconv.Itoa(snap.TradeCount),
				il,
			}
			if err := writer.Write(row); err != nil {
				return "", fmt.Errorf("failed to write row: %v", err)
			}
		}
	}

	return filePath, nil
}

// WriteAgentPerformance exports the final per-agent performance, one row
// per agent in stable ID order.
func (c *CSVManager) WriteAgentPerformance(runID string, perf map[string]agent.PerformanceSnapshot) (string, error) {
	dirPath := filepath.Join(c.basePath, "csv", "agents")
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %v", err)
	}

	filename := fmt.Sprintf("%s_agents_%s.csv", runID, time.Now().Format("20060102_150405"))
	filePath := filepath.Join(dirPath, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{
		"AgentID", "AgentType", "PnL", "GasUsed", "TxCount", "TradeCount", "ImpermanentLoss",
	}
	if err := writer.Write(headers); err != nil {
		return "", fmt.Errorf("failed to write headers: %v", err)
	}

	ids := make([]string, 0, len(perf))
	for id := range perf {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		snap := perf[id]
		il := ""
		if snap.ImpermanentLoss != nil {
			il = strconv.FormatFloat(*snap.ImpermanentLoss, 'f', 6, 64)
		}
		row := []string{
			snap.AgentID,
			string(snap.AgentType),
			snap.PnL.String(),
			strconv.FormatUint(snap.GasUsed, 10),
			strconv.FormatUint(snap.TxCount, 10),
			strconv.Itoa(snap.TradeCount),
			il,
		}
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write row: %v", err)
		}
	}

	return filePath, nil
}
