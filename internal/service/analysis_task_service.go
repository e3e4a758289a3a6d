package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/jengzang/run-uniqueness/internal/analysis"
	_ "github.com/jengzang/run-uniqueness/internal/analysis/route" // registers route_uniqueness
	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/repository"
	"github.com/jengzang/run-uniqueness/internal/uniqueness"
)

// Task service errors
var (
	ErrInvalidSkill      = errors.New("invalid skill name")
	ErrInvalidTaskType   = errors.New("invalid task type")
	ErrNothingToAnalyze  = errors.New("no activities to analyze")
	ErrTaskNotCancelable = errors.New("task is not running")
)

// AnalysisTaskService handles analysis task business logic
type AnalysisTaskService struct {
	repo       *repository.AnalysisTaskRepository
	activities *repository.ActivityRepository
	db         *sql.DB
	cfg        uniqueness.Config

	mu      sync.Mutex
	running map[int64]context.CancelFunc
	wg      sync.WaitGroup
}

// NewAnalysisTaskService creates a new analysis task service
func NewAnalysisTaskService(db *sql.DB, cfg uniqueness.Config) *AnalysisTaskService {
	return &AnalysisTaskService{
		repo:       repository.NewAnalysisTaskRepository(db),
		activities: repository.NewActivityRepository(db),
		db:         db,
		cfg:        cfg,
		running:    make(map[int64]context.CancelFunc),
	}
}

// CreateTask creates a new analysis task and runs it in the background
func (s *AnalysisTaskService) CreateTask(ctx context.Context, skillName string, taskType string, params map[string]interface{}, createdBy string) (*models.AnalysisTask, error) {
	task, err := s.createTask(ctx, skillName, taskType, params, createdBy)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[task.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(task.ID)
		s.execute(runCtx, task.ID, skillName, taskType)
	}()

	return task, nil
}

// RunTask creates an analysis task and runs it to completion
func (s *AnalysisTaskService) RunTask(ctx context.Context, skillName string, taskType string, createdBy string) (*models.AnalysisTask, error) {
	task, err := s.createTask(ctx, skillName, taskType, nil, createdBy)
	if err != nil {
		return nil, err
	}

	s.execute(ctx, task.ID, skillName, taskType)
	return s.repo.GetByID(ctx, task.ID)
}

func (s *AnalysisTaskService) createTask(ctx context.Context, skillName string, taskType string, params map[string]interface{}, createdBy string) (*models.AnalysisTask, error) {
	if !analysis.IsRegistered(skillName) {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrInvalidSkill, skillName, strings.Join(analysis.SkillNames(), ", "))
	}

	if taskType != models.TaskTypeIncremental && taskType != models.TaskTypeFullRecompute {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTaskType, taskType)
	}

	// Count activities to analyze
	filter := models.ActivityFilter{WithoutUniqueness: taskType == models.TaskTypeIncremental}
	count, err := s.activities.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}
	if count == 0 {
		return nil, ErrNothingToAnalyze
	}

	var paramsJSON string
	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize params: %w", err)
		}
		paramsJSON = string(paramsBytes)
	}

	task := &models.AnalysisTask{
		SkillName:  skillName,
		TaskType:   taskType,
		Status:     models.TaskStatusPending,
		TotalItems: count,
		ParamsJSON: paramsJSON,
		CreatedBy:  createdBy,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	logging.Info().Int64("task_id", task.ID).Str("skill", skillName).Str("type", taskType).Int("items", count).Msg("analysis task created")
	return task, nil
}

// execute runs the analyzer and records a failure on the task
func (s *AnalysisTaskService) execute(ctx context.Context, taskID int64, skillName string, taskType string) {
	analyzer := analysis.GetAnalyzer(skillName, s.db, s.cfg)
	if analyzer == nil {
		s.markFailed(taskID, fmt.Sprintf("Unknown skill: %s", skillName))
		return
	}

	mode := analysis.ModeIncremental
	if taskType == models.TaskTypeFullRecompute {
		mode = analysis.ModeFull
	}

	if err := analyzer.Analyze(ctx, taskID, mode); err != nil {
		if errors.Is(err, context.Canceled) {
			logging.Warn().Int64("task_id", taskID).Str("skill", skillName).Msg("analysis cancelled")
			s.markFailed(taskID, "Task cancelled")
			return
		}
		logging.Error().Err(err).Int64("task_id", taskID).Str("skill", skillName).Msg("analysis failed")
		s.markFailed(taskID, fmt.Sprintf("Analysis failed: %v", err))
		return
	}

	logging.Info().Int64("task_id", taskID).Str("skill", skillName).Msg("analysis completed")
}

// markFailed uses a fresh context so that cancelled tasks are still recorded
func (s *AnalysisTaskService) markFailed(taskID int64, message string) {
	if err := s.repo.MarkAsFailed(context.Background(), taskID, message); err != nil {
		logging.Error().Err(err).Int64("task_id", taskID).Msg("failed to record task failure")
	}
}

func (s *AnalysisTaskService) release(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[taskID]; ok {
		cancel()
		delete(s.running, taskID)
	}
}

// GetTask retrieves a task by ID
func (s *AnalysisTaskService) GetTask(ctx context.Context, id int64) (*models.AnalysisTask, error) {
	return s.repo.GetByID(ctx, id)
}

// ListTasks retrieves all tasks with optional filters
func (s *AnalysisTaskService) ListTasks(ctx context.Context, skillName string, status string, limit int, offset int) ([]*models.AnalysisTask, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, skillName, status, limit, offset)
}

// CancelTask cancels a running task
func (s *AnalysisTaskService) CancelTask(ctx context.Context, id int64) error {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusRunning {
		return fmt.Errorf("%w (status: %s)", ErrTaskNotCancelable, task.Status)
	}

	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}

	return s.repo.MarkAsFailed(ctx, id, "Task cancelled by user")
}

// Wait blocks until every background task has finished
func (s *AnalysisTaskService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels all background tasks and waits for them
func (s *AnalysisTaskService) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
