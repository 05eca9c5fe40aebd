// Package cli renders terminal output for the purpose command.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/card-purpose/internal/model"
)

var (
	// PrimaryColor is the accent used for titles and prompts.
	PrimaryColor = lipgloss.Color("#5B8DEF")
	// SuccessColor marks auto-confirmed rows and completed work.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor marks rows that need a person.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor marks failures.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// RevisedColor marks rows changed by a second opinion.
	RevisedColor = lipgloss.Color("#C792EA")
	// SubtleColor is used for secondary text.
	SubtleColor = lipgloss.Color("#666666")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	RevisedStyle = lipgloss.NewStyle().Foreground(RevisedColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoxStyle is used for bordered summaries.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// LabelStyle pads the left column of key/value lines.
	LabelStyle = lipgloss.NewStyle().
			Width(22).
			Foreground(SubtleColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	CardIcon    = "💳"
	RobotIcon   = "🤖"
	ChartIcon   = "📊"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return SubtleStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the card icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(CardIcon + " " + title)
}

// StateStyle picks the color for a review state.
func StateStyle(state model.ReviewState) lipgloss.Style {
	switch state {
	case model.ReviewAutoConfirmed:
		return SuccessStyle
	case model.ReviewAIRevised:
		return RevisedStyle
	case model.ReviewManualRequired:
		return WarningStyle
	default:
		return SubtleStyle
	}
}

// RenderBox renders content in a bordered box under a title.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}
