package server

import (
	"sort"
	"sync"

	"github.com/tarungka/sluice/stream"
)

// Registry holds the running tasks the server reports on. Tasks are
// registered at wiring time and read concurrently by request handlers;
// Task.Status is safe to call while the task loop runs.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*stream.Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*stream.Task)}
}

// Register adds a task, replacing any task with the same id.
func (r *Registry) Register(task *stream.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID()] = task
}

// Get returns the task with the given id.
func (r *Registry) Get(id string) (*stream.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	return task, ok
}

// List returns the status of every registered task, ordered by id.
func (r *Registry) List() []stream.TaskStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]stream.TaskStatus, 0, len(r.tasks))
	for _, task := range r.tasks {
		statuses = append(statuses, task.Status())
	}
	sort.Slice(statuses, func(a, b int) bool { return statuses[a].ID < statuses[b].ID })
	return statuses
}
