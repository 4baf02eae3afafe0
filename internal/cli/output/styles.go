package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by text output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusSkipped lipgloss.Style
}

// NewStyles builds the styles on a lipgloss renderer.
func NewStyles(r *lipgloss.Renderer) *Styles {
	green := lipgloss.AdaptiveColor{Light: "#16a34a", Dark: "#4ade80"}
	red := lipgloss.AdaptiveColor{Light: "#dc2626", Dark: "#f87171"}
	yellow := lipgloss.AdaptiveColor{Light: "#ca8a04", Dark: "#facc15"}
	gray := lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	blue := lipgloss.AdaptiveColor{Light: "#2563eb", Dark: "#60a5fa"}

	return &Styles{
		Header1: r.NewStyle().Bold(true).Foreground(blue).Underline(true),
		Header2: r.NewStyle().Bold(true).Foreground(blue),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(gray),
		Success: r.NewStyle().Foreground(green),
		Warning: r.NewStyle().Foreground(yellow),
		Error:   r.NewStyle().Foreground(red),

		StatusSuccess: r.NewStyle().Foreground(green).SetString("✓"),
		StatusFailed:  r.NewStyle().Foreground(red).SetString("✗"),
		StatusSkipped: r.NewStyle().Foreground(gray).SetString("-"),
	}
}
