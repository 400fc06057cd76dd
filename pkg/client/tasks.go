package client

import (
	"context"
	"net/http"
)

// ListTasks returns one page of active tasks.
func (c *Client) ListTasks(ctx context.Context, opts ListOptions) (*TaskPage, error) {
	return c.listTasks(ctx, "/api/tasks", opts)
}

// ListDeletedTasks returns one page of soft-deleted tasks.
func (c *Client) ListDeletedTasks(ctx context.Context, opts ListOptions) (*TaskPage, error) {
	return c.listTasks(ctx, "/api/tasks/deleted", opts)
}

func (c *Client) listTasks(ctx context.Context, path string, opts ListOptions) (*TaskPage, error) {
	var page TaskPage
	err := c.do(ctx, call{method: http.MethodGet, path: path, query: opts.values(), out: &page, authed: true})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetTask(ctx context.Context, id int64) (*Task, error) {
	return c.task(ctx, call{method: http.MethodGet, path: idPath("/api/tasks", id)})
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	return c.task(ctx, call{method: http.MethodPost, path: "/api/tasks", body: in})
}

// UpdateTask applies a partial update. When it completes a recurring task
// the returned task carries the Completion outcome.
func (c *Client) UpdateTask(ctx context.Context, id int64, u TaskUpdate) (*Task, error) {
	return c.task(ctx, call{method: http.MethodPatch, path: idPath("/api/tasks", id), body: u})
}

// DeleteTask soft-deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodDelete, path: idPath("/api/tasks", id), authed: true})
}

// RestoreTask undoes a soft delete.
func (c *Client) RestoreTask(ctx context.Context, id int64) (*Task, error) {
	var resp struct {
		Message string `json:"message"`
		Task    Task   `json:"task"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   idPath("/api/tasks", id) + "/restore",
		out:    &resp,
		authed: true,
	})
	if err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/tasks/stats", out: &s, authed: true}); err != nil {
		return nil, err
	}
	return &s, nil
}

// BulkAction applies action to every listed task. value is only used by
// set_priority.
func (c *Client) BulkAction(ctx context.Context, ids []int64, action, value string) (*BulkResult, error) {
	body := struct {
		TaskIDs []int64 `json:"task_ids"`
		Action  string  `json:"action"`
		Value   string  `json:"value,omitempty"`
	}{ids, action, value}

	var res BulkResult
	err := c.do(ctx, call{method: http.MethodPost, path: "/api/tasks/bulk_action", body: body, out: &res, authed: true})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) task(ctx context.Context, cl call) (*Task, error) {
	var t Task
	cl.out, cl.authed = &t, true
	if err := c.do(ctx, cl); err != nil {
		return nil, err
	}
	return &t, nil
}
