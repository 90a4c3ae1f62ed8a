// Package tui renders the planning board as an interactive terminal UI.
package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/openclaw/mission-control/internal/planning"
	"github.com/openclaw/mission-control/internal/store"
)

// screen represents which view the TUI is showing.
type screen int

const (
	screenBoard screen = iota // status columns (main)
	screenStory               // story drill-down with tasks
)

const numColumns = 5

var columnStatuses = [numColumns]store.ItemStatus{
	store.StatusTodo,
	store.StatusInProgress,
	store.StatusCodeReview,
	store.StatusVerify,
	store.StatusDone,
}

var columnLabels = [numColumns]string{
	"TODO",
	"IN PROGRESS",
	"CODE REVIEW",
	"VERIFY",
	"DONE",
}

// Model is the top-level bubbletea model.
type Model struct {
	svc    *planning.Service
	width  int
	height int

	currentScreen screen

	// Board state.
	columns   [numColumns][]store.Story
	cursorCol int
	cursorRow int

	// Story detail.
	selectedStory *store.Story
	storyTasks    []store.Task
	storyLabels   []store.Label
	detailView    viewport.Model

	statusMsg string
	quitting  bool
}

// New creates the board model over the planning service.
func New(svc *planning.Service) Model {
	vp := viewport.New(80, 20)
	return Model{
		svc:        svc,
		detailView: vp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.refreshStories()
}

type storiesRefreshedMsg struct {
	stories []store.Story
}

type storyDetailMsg struct {
	story  *store.Story
	tasks  []store.Task
	labels []store.Label
}

type statusMsgMsg string

func (m Model) refreshStories() tea.Cmd {
	return func() tea.Msg {
		stories, _, err := m.svc.ListStories(store.StoryFilter{}, 100, 0, "")
		if err != nil {
			return statusMsgMsg("Error loading stories")
		}
		return storiesRefreshedMsg{stories: stories}
	}
}

func (m Model) loadStoryDetail(id string) tea.Cmd {
	return func() tea.Msg {
		story, _, err := m.svc.GetStory(id)
		if err != nil {
			return statusMsgMsg("Error loading story")
		}
		tasks, _, err := m.svc.ListTasks(store.TaskFilter{StoryID: id}, 100, 0, "")
		if err != nil {
			return statusMsgMsg("Error loading tasks")
		}
		labels, _ := m.svc.StoryLabels(id)
		return storyDetailMsg{story: story, tasks: tasks, labels: labels}
	}
}

func (m *Model) rebuildColumns(stories []store.Story) {
	for i := range m.columns {
		m.columns[i] = nil
	}
	for _, st := range stories {
		for i, status := range columnStatuses {
			if st.Status == status {
				m.columns[i] = append(m.columns[i], st)
				break
			}
		}
	}
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursorCol < 0 {
		m.cursorCol = 0
	}
	if m.cursorCol >= numColumns {
		m.cursorCol = numColumns - 1
	}
	col := m.columns[m.cursorCol]
	if m.cursorRow >= len(col) {
		m.cursorRow = len(col) - 1
	}
	if m.cursorRow < 0 {
		m.cursorRow = 0
	}
}

func (m *Model) storyUnderCursor() *store.Story {
	col := m.columns[m.cursorCol]
	if m.cursorRow < len(col) {
		st := col[m.cursorRow]
		return &st
	}
	return nil
}
