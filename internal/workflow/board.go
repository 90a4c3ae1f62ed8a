// Package workflow reads the filesystem-based agent workflow board: stories,
// task YAML files grouped by state, result artifacts and agent statuses.
package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TaskStates are the board columns, in display order.
var TaskStates = []string{"BACKLOG", "PLANNED", "ASSIGNED", "DONE", "BLOCKED"}

// textExtensions lists the result-file extensions whose content is inlined.
var textExtensions = map[string]bool{
	".md": true, ".txt": true, ".yaml": true, ".yml": true, ".json": true,
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".css": true,
	".html": true, ".log": true, ".csv": true, ".xml": true, ".toml": true,
	".sh": true, ".py": true, ".rs": true, ".go": true,
}

var decisionPattern = regexp.MustCompile(`(?i)\*\*Decision:\*\*\s*(.+?)(?:\n|$)`)

// agentConfig is one fixed roster entry.
type agentConfig struct {
	name       string
	role       string
	workerType string // empty for the supervisor
}

var agentRoster = []agentConfig{
	{name: "James", role: "Supervisor / CSO"},
	{name: "Naomi", role: "Principal Developer", workerType: "coder"},
	{name: "Amos", role: "QA Engineer", workerType: "qa"},
	{name: "Alex", role: "Researcher", workerType: "research"},
}

// Story is a workflow story with its per-state task counts.
type Story struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	TaskCounts map[string]int `json:"task_counts"`
}

// Task is one task YAML file. A file that fails to parse still yields a task
// carrying ParseError so the board can surface it.
type Task struct {
	TaskID             string  `json:"task_id"`
	Objective          string  `json:"objective"`
	WorkerType         string  `json:"worker_type"`
	State              string  `json:"state"`
	StoryID            string  `json:"story_id"`
	Inputs             any     `json:"inputs"`
	Constraints        any     `json:"constraints"`
	OutputRequirements any     `json:"output_requirements"`
	ParseError         *string `json:"parseError"`
}

// ResultFile is one artifact under a task's results directory.
type ResultFile struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Content *string `json:"content"`
}

// TaskResult is the artifact set a task produced.
type TaskResult struct {
	TaskID string       `json:"task_id"`
	Files  []ResultFile `json:"files"`
}

// AgentStatus reports whether a roster agent is working and on what.
type AgentStatus struct {
	Name   string  `json:"name"`
	Role   string  `json:"role"`
	Status string  `json:"status"`
	Task   *string `json:"task,omitempty"`
}

// Board reads a workflow tree rooted at a supervisor system directory.
type Board struct {
	root    string
	stories string
	log     *slog.Logger
}

// NewBoard creates a board reader over the given root directory.
func NewBoard(root string, log *slog.Logger) *Board {
	if log == nil {
		log = slog.Default()
	}
	return &Board{root: root, stories: filepath.Join(root, "STORIES"), log: log}
}

// ListStories returns every story directory with its content and task counts.
// A missing STORIES directory is an empty board.
func (b *Board) ListStories() ([]Story, error) {
	entries, err := os.ReadDir(b.stories)
	if err != nil {
		if os.IsNotExist(err) {
			return []Story{}, nil
		}
		return nil, fmt.Errorf("read stories dir: %w", err)
	}

	stories := []Story{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		story, err := b.readStory(entry.Name())
		if err != nil {
			return nil, err
		}
		stories = append(stories, *story)
	}
	sort.Slice(stories, func(i, j int) bool { return stories[i].ID < stories[j].ID })
	return stories, nil
}

// GetStory returns a story and its tasks, or (nil, nil, nil) when the story
// directory has no STORY.md.
func (b *Board) GetStory(storyID string) (*Story, []Task, error) {
	if _, err := os.Stat(filepath.Join(b.stories, storyID, "STORY.md")); err != nil {
		return nil, nil, nil
	}
	story, err := b.readStory(storyID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := b.StoryTasks(storyID)
	if err != nil {
		return nil, nil, err
	}
	return story, tasks, nil
}

// StoryTasks returns a story's tasks across all board states.
func (b *Board) StoryTasks(storyID string) ([]Task, error) {
	tasksDir := filepath.Join(b.stories, storyID, "TASKS")
	tasks := []Task{}

	for _, state := range TaskStates {
		entries, err := os.ReadDir(filepath.Join(tasksDir, state))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !isYAML(entry.Name()) {
				continue
			}
			tasks = append(tasks, b.parseTaskFile(filepath.Join(tasksDir, state, entry.Name()), state, storyID))
		}
	}
	return tasks, nil
}

// Snapshot returns every story and every task on the board.
func (b *Board) Snapshot() ([]Story, []Task, error) {
	stories, err := b.ListStories()
	if err != nil {
		return nil, nil, err
	}
	tasks := []Task{}
	for _, story := range stories {
		storyTasks, err := b.StoryTasks(story.ID)
		if err != nil {
			return nil, nil, err
		}
		tasks = append(tasks, storyTasks...)
	}
	return stories, tasks, nil
}

// GetTask finds a task by ID in any state directory of a story, matching on
// the filename without extension. Returns nil when absent.
func (b *Board) GetTask(storyID, taskID string) *Task {
	tasksDir := filepath.Join(b.stories, storyID, "TASKS")
	for _, state := range TaskStates {
		entries, err := os.ReadDir(filepath.Join(tasksDir, state))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if stripExt(entry.Name()) == taskID {
				task := b.parseTaskFile(filepath.Join(tasksDir, state, entry.Name()), state, storyID)
				return &task
			}
		}
	}
	return nil
}

// TaskResults collects a task's result files recursively. Text files carry
// their content inline; binaries are listed by name only. Returns nil when
// the task has no results directory.
func (b *Board) TaskResults(storyID, taskID string) *TaskResult {
	resultsDir := filepath.Join(b.stories, storyID, "RESULTS", taskID)
	info, err := os.Stat(resultsDir)
	if err != nil || !info.IsDir() {
		return nil
	}
	return &TaskResult{TaskID: taskID, Files: b.collectFiles(resultsDir, "")}
}

// AgentStatuses reports each roster agent's activity: the supervisor from
// the last-tick decision, the workers from ASSIGNED task files matching
// their worker type.
func (b *Board) AgentStatuses() ([]AgentStatus, error) {
	decision := b.supervisorDecision()
	assigned := b.assignedTasks()

	statuses := make([]AgentStatus, 0, len(agentRoster))
	for _, agent := range agentRoster {
		if agent.workerType == "" {
			working := decision != "" &&
				(strings.Contains(strings.ToUpper(decision), "ASSIGN") ||
					strings.Contains(strings.ToUpper(decision), "CREATE"))
			status := AgentStatus{Name: agent.name, Role: agent.role, Status: "idle"}
			if working {
				status.Status = "working"
				d := decision
				status.Task = &d
			}
			statuses = append(statuses, status)
			continue
		}

		status := AgentStatus{Name: agent.name, Role: agent.role, Status: "idle"}
		if task, ok := assigned[agent.workerType]; ok {
			status.Status = "working"
			status.Task = &task
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (b *Board) readStory(storyID string) (*Story, error) {
	content := ""
	if raw, err := os.ReadFile(filepath.Join(b.stories, storyID, "STORY.md")); err == nil {
		content = string(raw)
	}

	tasks, err := b.StoryTasks(storyID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(TaskStates))
	for _, state := range TaskStates {
		counts[state] = 0
	}
	for _, task := range tasks {
		if _, ok := counts[task.State]; ok {
			counts[task.State]++
		}
	}
	return &Story{ID: storyID, Content: content, TaskCounts: counts}, nil
}

func (b *Board) parseTaskFile(path, state, storyID string) Task {
	baseName := stripExt(filepath.Base(path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return b.errorTask(baseName, state, storyID, err.Error())
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return b.errorTask(baseName, state, storyID, err.Error())
	}
	data, ok := doc.(map[string]any)
	if !ok {
		return b.errorTask(baseName, state, storyID, "YAML parsed to non-object value")
	}
	taskID := stringValue(data["task_id"])
	if taskID == "" {
		return b.errorTask(baseName, state, storyID, "Missing required field: task_id")
	}

	return Task{
		TaskID:             taskID,
		Objective:          stringValue(data["objective"]),
		WorkerType:         stringOrDefault(data["worker_type"], "unknown"),
		State:              state,
		StoryID:            storyID,
		Inputs:             data["inputs"],
		Constraints:        data["constraints"],
		OutputRequirements: data["output_requirements"],
	}
}

func (b *Board) errorTask(taskID, state, storyID, message string) Task {
	b.log.Warn("task file rejected", "task_id", taskID, "story_id", storyID, "error", message)
	if taskID == "" {
		taskID = "unknown"
	}
	return Task{
		TaskID:     taskID,
		WorkerType: "unknown",
		State:      state,
		StoryID:    storyID,
		ParseError: &message,
	}
}

func (b *Board) collectFiles(baseDir, relative string) []ResultFile {
	dir := baseDir
	if relative != "" {
		dir = filepath.Join(baseDir, relative)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []ResultFile{}
	}

	files := []ResultFile{}
	for _, entry := range entries {
		rel := entry.Name()
		if relative != "" {
			rel = relative + "/" + entry.Name()
		}
		if entry.IsDir() {
			files = append(files, b.collectFiles(baseDir, rel)...)
			continue
		}

		var content *string
		if textExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			if raw, err := os.ReadFile(filepath.Join(baseDir, rel)); err == nil {
				text := string(raw)
				content = &text
			}
		}
		files = append(files, ResultFile{Name: entry.Name(), Path: rel, Content: content})
	}
	return files
}

// supervisorDecision extracts the Decision line from the supervisor's last
// tick record, or "".
func (b *Board) supervisorDecision() string {
	raw, err := os.ReadFile(filepath.Join(b.root, "supervisor", "state", "last-tick.md"))
	if err != nil {
		return ""
	}
	match := decisionPattern.FindSubmatch(raw)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(string(match[1]))
}

// assignedTasks maps worker type to the first objective line of an ASSIGNED
// task file carrying that worker type.
func (b *Board) assignedTasks() map[string]string {
	assigned := map[string]string{}
	storyDirs, err := os.ReadDir(b.stories)
	if err != nil {
		return assigned
	}

	for _, storyDir := range storyDirs {
		assignedDir := filepath.Join(b.stories, storyDir.Name(), "TASKS", "ASSIGNED")
		entries, err := os.ReadDir(assignedDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !isYAML(entry.Name()) {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(assignedDir, entry.Name()))
			if err != nil {
				continue
			}
			var data map[string]any
			if err := yaml.Unmarshal(raw, &data); err != nil || data == nil {
				continue
			}
			workerType := stringValue(data["worker_type"])
			if workerType == "" {
				continue
			}
			assigned[workerType] = firstLine(stringValue(data["objective"]))
		}
	}
	return assigned
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func stripExt(name string) string {
	if ext := filepath.Ext(name); ext != "" {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func stringOrDefault(v any, fallback string) string {
	if s := stringValue(v); s != "" {
		return s
	}
	return fallback
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return s
}
