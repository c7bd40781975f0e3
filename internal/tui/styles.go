package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// Accent color for the chemtalk brand.
const accentTeal = "#2BB6A8"

// CHEMTALK ASCII banner (block style).
var bannerArt = []string{
	" ██████╗██╗  ██╗███████╗███╗   ███╗████████╗█████╗ ██╗     ██╗  ██╗",
	"██╔════╝██║  ██║██╔════╝████╗ ████║╚══██╔══╝██╔══██╗██║    ██║ ██╔╝",
	"██║     ███████║█████╗  ██╔████╔██║   ██║   ███████║██║    █████╔╝ ",
	"██║     ██╔══██║██╔══╝  ██║╚██╔╝██║   ██║   ██╔══██║██║    ██╔═██╗ ",
	"╚██████╗██║  ██║███████╗██║ ╚═╝ ██║   ██║   ██║  ██║█████╗██║  ██╗",
	" ╚═════╝╚═╝  ╚═╝╚══════╝╚═╝     ╚═╝   ╚═╝   ╚═╝  ╚═╝╚════╝╚═╝  ╚═╝",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner    lipgloss.Style
	User      lipgloss.Style
	Agent     lipgloss.Style
	Thought   lipgloss.Style
	Tool      lipgloss.Style
	ToolError lipgloss.Style
	Files     lipgloss.Style
	System    lipgloss.Style
	Error     lipgloss.Style
	Prompt    lipgloss.Style
	Separator lipgloss.Style
	StatusBar lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentTeal)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Agent:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Thought:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("243")),
		Tool:      lipgloss.NewStyle().Foreground(lipgloss.Color("110")),
		ToolError: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Files:     lipgloss.NewStyle().Foreground(lipgloss.Color("150")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// RenderBanner returns the ASCII banner as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range bannerArt {
		_, _ = b.WriteString(s.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}

// welcomeTips are shown under the banner until the first message.
var welcomeTips = []string{
	"Tips for getting started:",
	"  • Describe the process to simulate - the agent plans the flowsheet",
	"  • Tab expands or collapses the latest thought/tool entry",
	"  • Ctrl+F downloads the artifacts from the latest run",
	"  • Press Ctrl+C twice to exit",
}

// RenderWelcomeTips returns the styled tips block.
func (s Styles) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		_, _ = b.WriteString(s.StatusBar.Render(tip))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
