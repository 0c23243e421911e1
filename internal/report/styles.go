package report

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/gubarz/cachebust/internal/config"
)

// StyleManager holds the styles used for console output
type StyleManager struct {
	Success lipgloss.Style
	Skip    lipgloss.Style
	Error   lipgloss.Style
	Title   lipgloss.Style
	Label   lipgloss.Style
	Count   lipgloss.Style
}

// DefaultStyles returns a StyleManager with default styles
func DefaultStyles() *StyleManager {
	return &StyleManager{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Skip:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		Label:   lipgloss.NewStyle().PaddingLeft(3),
		Count:   lipgloss.NewStyle().Bold(true),
	}
}

// LoadFromConfig updates styles based on configuration
func (s *StyleManager) LoadFromConfig() {
	s.Success = lipgloss.NewStyle().Foreground(parseANSIColor(config.GetColorSuccess()))
	s.Skip = lipgloss.NewStyle().Foreground(parseANSIColor(config.GetColorSkip()))
	s.Error = lipgloss.NewStyle().Bold(true).Foreground(parseANSIColor(config.GetColorError()))
	s.Title = lipgloss.NewStyle().Bold(true).Foreground(parseANSIColor(config.GetColorSummary()))
}

// parseANSIColor converts ANSI color codes to lipgloss colors
func parseANSIColor(code string) lipgloss.Color {
	ansiToLipgloss := map[string]string{
		"30": "0", "31": "1", "32": "2", "33": "3",
		"34": "4", "35": "5", "36": "6", "37": "7",
		"90": "8", "91": "9", "92": "10", "93": "11",
		"94": "12", "95": "13", "96": "14", "97": "15",
	}
	if mapped, ok := ansiToLipgloss[code]; ok {
		return lipgloss.Color(mapped)
	}
	return lipgloss.Color(code)
}
