package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vw := m.width - 4
		vh := m.height - 8
		if vw < 20 {
			vw = 20
		}
		if vh < 6 {
			vh = 6
		}
		m.detailView.Width = vw
		m.detailView.Height = vh
		return m, nil

	case storiesRefreshedMsg:
		m.rebuildColumns(msg.stories)
		return m, nil

	case storyDetailMsg:
		m.selectedStory = msg.story
		m.storyTasks = msg.tasks
		m.storyLabels = msg.labels
		m.detailView.SetContent(m.renderStoryDetail())
		m.detailView.GotoTop()
		m.currentScreen = screenStory
		return m, nil

	case statusMsgMsg:
		m.statusMsg = string(msg)
		return m, nil
	}

	if m.currentScreen == screenStory {
		var cmd tea.Cmd
		m.detailView, cmd = m.detailView.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.currentScreen == screenBoard {
			m.quitting = true
			return m, tea.Quit
		}
		return m.goBack()

	case "esc", "backspace":
		return m.goBack()
	}

	switch m.currentScreen {
	case screenBoard:
		return m.handleBoardKey(msg)
	case screenStory:
		var cmd tea.Cmd
		m.detailView, cmd = m.detailView.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) goBack() (tea.Model, tea.Cmd) {
	if m.currentScreen == screenStory {
		m.currentScreen = screenBoard
		m.selectedStory = nil
		m.storyTasks = nil
		m.storyLabels = nil
		return m, m.refreshStories()
	}
	return m, nil
}

func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.cursorRow++
		m.clampCursor()
	case "k", "up":
		m.cursorRow--
		m.clampCursor()
	case "h", "left":
		m.cursorCol--
		m.cursorRow = 0
		m.clampCursor()
	case "l", "right":
		m.cursorCol++
		m.cursorRow = 0
		m.clampCursor()

	case "enter", " ":
		if st := m.storyUnderCursor(); st != nil {
			return m, m.loadStoryDetail(st.ID)
		}

	case "r", "R":
		m.statusMsg = ""
		return m, m.refreshStories()
	}
	return m, nil
}
