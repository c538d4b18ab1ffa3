//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/tasktrac/apiserver/config"
	"github.com/tasktrac/apiserver/internal/db"
	"github.com/tasktrac/apiserver/internal/server"
)

const serverPort = 18080

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		shutdownServer(srv)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	shutdownServer(srv)
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestTaskLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d/api/taskTrac", serverPort)
	mobile := fmt.Sprintf("9%09d", time.Now().UnixNano()%1_000_000_000)
	email := fmt.Sprintf("e2e_%d@example.com", time.Now().UnixNano())

	token, err := registerUser(t, baseURL, mobile, email)
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	start := time.Now().Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 7).Format("2006-01-02")

	created, err := createTask(t, baseURL, token, "Ship release", start, end)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected task ID to be set")
	}
	if created.Completed {
		t.Fatalf("expected new task to be pending")
	}

	tasks, err := listTasks(t, baseURL, token)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Fatalf("unexpected task list: %+v", tasks)
	}

	updated, err := updateTask(t, baseURL, token, created.ID, map[string]any{
		"title":     "Ship release v2",
		"completed": true,
	})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Title != "Ship release v2" || !updated.Completed {
		t.Fatalf("unexpected updated task: %+v", updated)
	}

	fetched, err := getTask(t, baseURL, token, created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if fetched.ID != created.ID || !fetched.Completed {
		t.Fatalf("unexpected fetched task: %+v", fetched)
	}

	if err := deleteTask(t, baseURL, token, created.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	if err := expectTaskNotFound(t, baseURL, token, created.ID); err != nil {
		t.Fatalf("expected deleted task to be missing: %v", err)
	}
}

type taskResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func registerUser(t *testing.T, baseURL, mobile, email string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"name":     "E2E User",
		"email":    email,
		"mobile":   mobile,
		"password": "testpass123!",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err := http.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(env.Data, &token); err != nil || token == "" {
		return "", fmt.Errorf("missing token in register response")
	}
	return token, nil
}

func createTask(t *testing.T, baseURL, token, title, start, end string) (taskResponse, error) {
	t.Helper()

	payload := map[string]string{
		"title":       title,
		"description": "end to end check",
		"startDate":   start,
		"endDate":     end,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return taskResponse{}, err
	}

	resp, err := doRequest(http.MethodPost, baseURL+"/task/add", token, bytes.NewReader(body))
	if err != nil {
		return taskResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return taskResponse{}, fmt.Errorf("create task status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return taskResponse{}, err
	}
	var task taskResponse
	if err := json.Unmarshal(env.Data, &task); err != nil {
		return taskResponse{}, err
	}
	return task, nil
}

func listTasks(t *testing.T, baseURL, token string) ([]taskResponse, error) {
	t.Helper()

	resp, err := doRequest(http.MethodGet, baseURL+"/task/list", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list tasks status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed struct {
		Tasks []taskResponse `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Tasks, nil
}

func updateTask(t *testing.T, baseURL, token, id string, fields map[string]any) (taskResponse, error) {
	t.Helper()

	body, err := json.Marshal(fields)
	if err != nil {
		return taskResponse{}, err
	}

	resp, err := doRequest(http.MethodPut, baseURL+"/task/update/"+id, token, bytes.NewReader(body))
	if err != nil {
		return taskResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return taskResponse{}, fmt.Errorf("update task status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return taskResponse{}, err
	}
	return task, nil
}

func getTask(t *testing.T, baseURL, token, id string) (taskResponse, error) {
	t.Helper()

	resp, err := doRequest(http.MethodGet, baseURL+"/task/list/"+id, token, nil)
	if err != nil {
		return taskResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return taskResponse{}, fmt.Errorf("get task status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return taskResponse{}, err
	}
	return task, nil
}

func deleteTask(t *testing.T, baseURL, token, id string) error {
	t.Helper()

	resp, err := doRequest(http.MethodDelete, baseURL+"/task/delete/"+id, token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete task status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func expectTaskNotFound(t *testing.T, baseURL, token, id string) error {
	t.Helper()

	resp, err := doRequest(http.MethodGet, baseURL+"/task/list/"+id, token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected 404 after delete, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func doRequest(method, url, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return http.DefaultClient.Do(req)
}

func waitForPostgres(ctx context.Context) error {
	cfg := testConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := testConfig()
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func testConfig() config.Config {
	setTestEnv()
	return config.LoadConfig()
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("STORE_BACKEND", "postgres")
	_ = os.Setenv("EVENTS_BACKEND", "none")
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "tasktrac")
	_ = os.Setenv("DB_PASSWORD", "tasktrac")
	_ = os.Setenv("DB_NAME", "tasktrac")
	_ = os.Setenv("DB_USE_SSL", "false")
}

func startServer() (*server.Server, error) {
	cfg := testConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func shutdownServer(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
