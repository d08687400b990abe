package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reviewsync/internal/biz"
	"reviewsync/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	defaultDataForSEOURL = "https://api.dataforseo.com/v3"
	defaultPollInterval  = 6 * time.Second
	defaultTaskTimeout   = 120 * time.Second
	defaultTATimeout     = 100 * time.Second
	defaultPendingTTL    = time.Hour
	defaultTaskPriority  = 2
	requestTimeout       = 30 * time.Second

	statusOK = 20000
)

// Task status codes that mean "keep polling".
var pendingStatus = map[int]bool{
	20100: true, // task created
	40001: true,
	40601: true, // task handed
	40602: true, // task in queue
}

const (
	endpointGoogleReviews      = "business_data/google/reviews"
	endpointTripadvisorReviews = "business_data/tripadvisor/reviews"
	endpointBusinessInfo       = "business_data/google/my_business_info"
)

// TaskRequest describes one asynchronous provider task.
type TaskRequest struct {
	Endpoint string
	// Payload is the single task object posted to task_post. Depth and
	// priority are filled in by the client.
	Payload map[string]interface{}
	Depth   int
	Timeout time.Duration
	// ResumeKey identifies the request across calls so a timed-out task can
	// be picked up later instead of posting a new one.
	ResumeKey string
}

// TaskResult is a finished task.
type TaskResult struct {
	TaskID      string
	Cost        float64
	ResultCount int
	Result      []json.RawMessage
}

// First returns the first result block or nil.
func (r *TaskResult) First() json.RawMessage {
	if r == nil || len(r.Result) == 0 {
		return nil
	}
	return r.Result[0]
}

type dfsTask struct {
	ID            string            `json:"id"`
	StatusCode    int               `json:"status_code"`
	StatusMessage string            `json:"status_message"`
	Cost          float64           `json:"cost"`
	ResultCount   int               `json:"result_count"`
	Result        []json.RawMessage `json:"result"`
}

type dfsResponse struct {
	StatusCode    int       `json:"status_code"`
	StatusMessage string    `json:"status_message"`
	Tasks         []dfsTask `json:"tasks"`
}

// PendingTaskStore remembers task ids that outlived their polling window.
type PendingTaskStore struct {
	rdb *redis.Client
	ttl time.Duration
	log *log.Helper
}

// NewPendingTaskStore creates a Redis backed store. Without Redis every call
// is a no-op and timed-out tasks are simply abandoned.
func NewPendingTaskStore(data *Data, c *conf.DataForSEO, logger log.Logger) *PendingTaskStore {
	ttl := defaultPendingTTL
	if c != nil && c.PendingTtl.AsDuration() > 0 {
		ttl = c.PendingTtl.AsDuration()
	}
	return &PendingTaskStore{rdb: data.rdb, ttl: ttl, log: log.NewHelper(logger)}
}

func pendingKey(key string) string {
	return "dfs:pending:" + key
}

func (s *PendingTaskStore) Get(ctx context.Context, key string) (string, bool) {
	if s == nil || s.rdb == nil || key == "" {
		return "", false
	}
	id, err := s.rdb.Get(ctx, pendingKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warnf("failed to read pending task %s: %v", key, err)
		}
		return "", false
	}
	return id, true
}

func (s *PendingTaskStore) Put(ctx context.Context, key, taskID string) {
	if s == nil || s.rdb == nil || key == "" {
		return
	}
	if err := s.rdb.Set(ctx, pendingKey(key), taskID, s.ttl).Err(); err != nil {
		s.log.Warnf("failed to remember pending task %s: %v", taskID, err)
	}
}

func (s *PendingTaskStore) Delete(ctx context.Context, key string) {
	if s == nil || s.rdb == nil || key == "" {
		return
	}
	s.rdb.Del(ctx, pendingKey(key))
}

// DataForSEOClient speaks the task_post / task_get protocol.
type DataForSEOClient struct {
	client       *http.Client
	baseURL      string
	login        string
	password     string
	priority     int
	pollInterval time.Duration
	pending      *PendingTaskStore
	log          *log.Helper

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewDataForSEOClient creates a new DataForSEO API client
func NewDataForSEOClient(c *conf.DataForSEO, pending *PendingTaskStore, logger log.Logger) *DataForSEOClient {
	if c == nil {
		c = &conf.DataForSEO{}
	}
	baseURL := strings.TrimRight(c.BaseUrl, "/")
	if baseURL == "" {
		baseURL = defaultDataForSEOURL
	}
	priority := int(c.Priority)
	if priority <= 0 {
		priority = defaultTaskPriority
	}
	interval := c.PollInterval.AsDuration()
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &DataForSEOClient{
		client:       &http.Client{Timeout: requestTimeout},
		baseURL:      baseURL,
		login:        c.Login,
		password:     c.Password,
		priority:     priority,
		pollInterval: interval,
		pending:      pending,
		log:          log.NewHelper(logger),
		sleep:        sleepCtx,
		now:          time.Now,
	}
}

// RoundDepth rounds a requested depth up to the provider's billing unit of 10.
func RoundDepth(depth int) int {
	if depth <= 10 {
		return 10
	}
	return (depth + 9) / 10 * 10
}

// Fetch posts a task (or resumes a remembered one) and polls it until it is
// done, fails, or the request timeout elapses.
func (c *DataForSEOClient) Fetch(ctx context.Context, tr *TaskRequest) (*TaskResult, error) {
	timeout := tr.Timeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}

	if taskID, ok := c.pending.Get(ctx, tr.ResumeKey); ok {
		c.log.Infof("resuming pending %s task %s", tr.Endpoint, taskID)
		res, err := c.poll(ctx, tr, taskID, timeout)
		switch {
		case err == nil:
			c.pending.Delete(ctx, tr.ResumeKey)
			return res, nil
		case errors.Is(err, biz.ErrProviderTimeout):
			return nil, err
		case errors.Is(err, biz.ErrProviderError):
			c.log.Warnf("pending task %s is unusable, posting a new one: %v", taskID, err)
			c.pending.Delete(ctx, tr.ResumeKey)
		default:
			return nil, err
		}
	}

	taskID, err := c.post(ctx, tr)
	if err != nil {
		return nil, err
	}
	res, err := c.poll(ctx, tr, taskID, timeout)
	if err == nil {
		c.pending.Delete(ctx, tr.ResumeKey)
	}
	return res, err
}

func (c *DataForSEOClient) post(ctx context.Context, tr *TaskRequest) (string, error) {
	task := make(map[string]interface{}, len(tr.Payload)+2)
	for k, v := range tr.Payload {
		task[k] = v
	}
	if tr.Depth > 0 {
		task["depth"] = RoundDepth(tr.Depth)
	}
	task["priority"] = c.priority

	body, err := json.Marshal([]interface{}{task})
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, tr.Endpoint+"/task_post", body)
	if err != nil {
		return "", err
	}
	if len(resp.Tasks) == 0 || resp.Tasks[0].ID == "" {
		return "", &biz.ProviderError{Endpoint: tr.Endpoint, StatusCode: resp.StatusCode, Message: "no task id in task_post response"}
	}
	t := resp.Tasks[0]
	if t.StatusCode >= 40000 && !pendingStatus[t.StatusCode] {
		return "", &biz.ProviderError{Endpoint: tr.Endpoint, TaskID: t.ID, StatusCode: t.StatusCode, Message: t.StatusMessage}
	}
	c.log.Infof("posted %s task %s (priority %d, depth %v)", tr.Endpoint, t.ID, c.priority, task["depth"])
	return t.ID, nil
}

func (c *DataForSEOClient) poll(ctx context.Context, tr *TaskRequest, taskID string, timeout time.Duration) (*TaskResult, error) {
	start := c.now()
	deadline := start.Add(timeout)
	attempt := 0
	for {
		attempt++
		t, err := c.get(ctx, tr.Endpoint, taskID)
		switch {
		case err != nil && errors.Is(err, biz.ErrProviderError):
			return nil, err
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warnf("poll %d of %s task %s failed, will retry: %v", attempt, tr.Endpoint, taskID, err)
		case t.StatusCode == statusOK:
			c.log.Infof("%s task %s ready after %s (%d results)", tr.Endpoint, taskID, c.now().Sub(start).Round(time.Millisecond), t.ResultCount)
			return taskResult(t), nil
		case pendingStatus[t.StatusCode] || t.StatusCode < 40000:
			c.log.Debugf("%s task %s pending (status %d)", tr.Endpoint, taskID, t.StatusCode)
		default:
			return nil, &biz.ProviderError{Endpoint: tr.Endpoint, TaskID: taskID, StatusCode: t.StatusCode, Message: t.StatusMessage}
		}

		if !c.now().Add(c.pollInterval).Before(deadline) {
			break
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}

	waited := c.now().Sub(start)
	if res, ok := c.readyFallback(ctx, tr.Endpoint, taskID); ok {
		return res, nil
	}
	c.pending.Put(ctx, tr.ResumeKey, taskID)
	c.log.Warnf("%s task %s not ready after %s", tr.Endpoint, taskID, waited.Round(time.Millisecond))
	return nil, &biz.TimeoutError{Endpoint: tr.Endpoint, TaskID: taskID, Waited: waited}
}

// readyFallback checks tasks_ready once after the polling window closed.
func (c *DataForSEOClient) readyFallback(ctx context.Context, endpoint, taskID string) (*TaskResult, bool) {
	resp, err := c.do(ctx, http.MethodGet, endpoint+"/tasks_ready", nil)
	if err != nil {
		c.log.Warnf("tasks_ready check for %s failed: %v", endpoint, err)
		return nil, false
	}
	if !readyContains(resp, taskID) {
		return nil, false
	}
	t, err := c.get(ctx, endpoint, taskID)
	if err != nil || t.StatusCode != statusOK {
		return nil, false
	}
	c.log.Infof("%s task %s recovered via tasks_ready", endpoint, taskID)
	return taskResult(t), true
}

// readyContains accepts both the documented shape (ids listed in the result
// of the first task) and ids listed as tasks.
func readyContains(resp *dfsResponse, taskID string) bool {
	for _, t := range resp.Tasks {
		if t.ID == taskID {
			return true
		}
		for _, raw := range t.Result {
			var entry struct {
				ID string `json:"id"`
			}
			if json.Unmarshal(raw, &entry) == nil && entry.ID == taskID {
				return true
			}
		}
	}
	return false
}

func (c *DataForSEOClient) get(ctx context.Context, endpoint, taskID string) (*dfsTask, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint+"/task_get/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Tasks) == 0 {
		return nil, fmt.Errorf("empty task_get response for %s", taskID)
	}
	return &resp.Tasks[0], nil
}

func (c *DataForSEOClient) do(ctx context.Context, method, path string, body []byte) (*dfsResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.login, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &biz.ProviderError{Endpoint: path, StatusCode: resp.StatusCode, Message: "credentials rejected"}
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &biz.ProviderError{Endpoint: path, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var out dfsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.StatusCode >= 40000 {
		return nil, &biz.ProviderError{Endpoint: path, StatusCode: out.StatusCode, Message: out.StatusMessage}
	}
	return &out, nil
}

func taskResult(t *dfsTask) *TaskResult {
	return &TaskResult{TaskID: t.ID, Cost: t.Cost, ResultCount: t.ResultCount, Result: t.Result}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
