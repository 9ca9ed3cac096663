package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// Console implementa ports.Notifier escribiendo una línea por señal.
// PrintStatus y PrintRecent imprimen tablas para la CLI.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify imprime la señal en formato compacto.
func (c *Console) Notify(_ context.Context, ev domain.SignalEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s %s:%s conf:%d $%.2f (%.2f sh)",
		ev.At.Format("15:04:05"),
		icon(ev.Disposition),
		sourceLabel(ev),
		truncate(marketLabel(ev), 40),
		ev.Side,
		ev.Confidence,
		ev.RecommendedCapital,
		ev.RecommendedShares,
	)
	if ev.Reason != "" {
		fmt.Fprintf(&sb, " | %s", ev.Reason)
	}
	_, err := fmt.Fprintln(c.out, sb.String())
	return err
}

// PrintStatus imprime el estado de riesgo y los sources en seguimiento.
func (c *Console) PrintStatus(st domain.RiskStatus, sources []domain.TrackedSource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	enabled := "YES"
	if !st.Enabled {
		enabled = "NO (kill switch)"
	}
	cooldown := "-"
	if st.InCooldown && st.CooldownUntil != nil {
		cooldown = "until " + st.CooldownUntil.Format(time.RFC3339)
	}

	fmt.Fprintf(c.out, "\n=== RISK STATUS (%s) ===\n", st.Day)
	table := tablewriter.NewWriter(c.out)
	table.Header("Enabled", "Failures", "Cooldown", "Open", "Daily P&L")
	table.Append(
		enabled,
		fmt.Sprintf("%d", st.ConsecutiveFailures),
		cooldown,
		fmt.Sprintf("%d", st.OpenPositions),
		fmt.Sprintf("$%.2f", st.DailyPnL),
	)
	table.Render()

	if len(sources) == 0 {
		return
	}

	fmt.Fprintln(c.out, "\n=== SOURCES ===")
	table = tablewriter.NewWriter(c.out)
	table.Header("#", "Name", "Address", "Accuracy", "Trades", "Net profit", "Last poll")
	for i, s := range sources {
		last := "-"
		if !s.LastPollAt.IsZero() {
			last = s.LastPollAt.Format("15:04:05")
		}
		name := s.Label()
		if s.Disabled {
			name += " (off)"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			name,
			s.Address,
			fmt.Sprintf("%.1f%%", s.Reputation.AccuracyPct),
			fmt.Sprintf("%d", s.Reputation.TotalTrades),
			fmt.Sprintf("$%.0f", s.Reputation.NetProfit),
			last,
		)
	}
	table.Render()
}

// PrintRecent imprime las últimas transiciones del ledger.
func (c *Console) PrintRecent(records []domain.SignalRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(records) == 0 {
		fmt.Fprintln(c.out, "no signals recorded")
		return
	}

	fmt.Fprintf(c.out, "\n=== LAST %d SIGNAL EVENTS ===\n", len(records))
	table := tablewriter.NewWriter(c.out)
	table.Header("At", "Signal", "Stage", "Disposition", "Market", "Side", "Conf", "Capital", "Reason")
	for _, r := range records {
		table.Append(
			r.At.Format("01-02 15:04:05"),
			truncate(r.SignalID, 8),
			string(r.Stage),
			string(r.Disposition),
			truncate(r.MarketID, 14),
			string(r.Side),
			fmt.Sprintf("%d", r.Confidence),
			fmt.Sprintf("$%.2f", r.Capital),
			truncate(r.Reason, 30),
		)
	}
	table.Render()
}

func icon(d domain.Disposition) string {
	switch d {
	case domain.DispositionExecuted:
		return "[COPY]"
	case domain.DispositionSkippedLowConfidence:
		return "[SKIP]"
	case domain.DispositionRejectedRisk:
		return "[RISK]"
	case domain.DispositionFailed:
		return "[FAIL]"
	}
	return "[" + string(d) + "]"
}

func sourceLabel(ev domain.SignalEvent) string {
	if ev.SourceName != "" {
		return ev.SourceName
	}
	return truncate(ev.Source, 10)
}

func marketLabel(ev domain.SignalEvent) string {
	if ev.MarketTitle != "" {
		return ev.MarketTitle
	}
	return ev.Market
}

// truncate trunca un string a maxLen caracteres añadiendo "..." si es necesario.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
