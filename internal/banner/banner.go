package banner

import (
	"github.com/charmbracelet/lipgloss"

	"quizload/internal/tui/styles"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
              _      __                __
  ____ ___ __(_)___ / /__  ___ ____ __/ /
 / _ '/ // / /_ / / / _ \/ _ '/ _  / / 
 \_, /\_,_/_//__/_/_/\___/\_,_/\_,_/  
  /_/                                   `

	return "\n" + style.Render(ascii) + "\n"
}
