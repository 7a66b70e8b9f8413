// Package cli 命令行的终端交互
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	quitting bool
	done     bool
}

func newSpinnerModel(message string) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return spinnerModel{spinner: s, message: message}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case doneMsg:
		m.done = true
		m.quitting = true
		return m, tea.Quit
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), m.message)
}

type doneMsg struct{}

// ErrInterrupted 等待期间按下 ctrl+c
var ErrInterrupted = fmt.Errorf("已中断")

// ExecuteWithSpinner 执行 fn 并显示加载动画, 非终端环境只输出一行提示
func ExecuteWithSpinner[T any](message string, fn func() (T, error)) (T, error) {
	if !IsATTY() {
		fmt.Fprintln(os.Stderr, message)
		return fn()
	}

	var (
		result T
		err    error
	)
	finished := make(chan struct{})
	p := tea.NewProgram(newSpinnerModel(message), tea.WithOutput(os.Stderr))
	go func() {
		result, err = fn()
		close(finished)
		p.Send(doneMsg{})
	}()

	final, runErr := p.Run()
	if runErr != nil {
		// 动画失败时退化为直接等待
		<-finished
		return result, err
	}
	if fm, ok := final.(spinnerModel); ok && !fm.done {
		var zero T
		return zero, ErrInterrupted
	}
	<-finished
	return result, err
}

// IsATTY 标准输出是否为终端
func IsATTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
