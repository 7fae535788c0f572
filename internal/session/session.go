// Package session lays out the per-run output folders:
//
//	{dir}/{YYYY-MM-DD}/run_N/
//
// Dates are UTC. A run that crosses midnight keeps its run id and continues
// in the next date's folder.
package session

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"go.uber.org/zap"
)

var (
	runPattern  = regexp.MustCompile(`^run_(\d+)$`)
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// DateKey formats t as the folder name of its UTC date.
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Manager tracks the folder of the current run.
type Manager struct {
	dir            string
	runID          string
	runNumber      int
	sessionStart   time.Time
	currentDate    string
	currentRunPath string
	mu             sync.Mutex
	logger         *logger.Logger
}

// NewManager creates a Manager rooted at dir.
func NewManager(dir string, log *logger.Logger) *Manager {
	return &Manager{
		dir:            dir,
		runID:          "",
		runNumber:      0,
		sessionStart:   time.Time{},
		currentDate:    "",
		currentRunPath: "",
		mu:             sync.Mutex{},
		logger:         log,
	}
}

// Initialize picks the next run number for the date of now and creates its folder.
func (s *Manager) Initialize(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionStart = now
	s.currentDate = DateKey(now)

	runNumber, err := s.nextRunNumber(s.currentDate)
	if err != nil {
		return err
	}

	s.runNumber = runNumber
	s.runID = "run_" + strconv.Itoa(runNumber)

	if err := s.createRunFolder(); err != nil {
		return err
	}

	s.logger.Info("Session initialized",
		zap.String("run_id", s.runID),
		zap.String("date", s.currentDate),
		zap.String("path", s.currentRunPath),
	)

	return nil
}

// HandleDateBoundary moves the run to the folder of ts's date when it changed.
// It reports whether a new folder was created.
func (s *Manager) HandleDateBoundary(ts time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newDate := DateKey(ts)
	if newDate == s.currentDate {
		return false, nil
	}

	oldDate := s.currentDate
	s.currentDate = newDate

	if err := s.createRunFolder(); err != nil {
		return false, err
	}

	s.logger.Info("Date boundary crossed, created new folder",
		zap.String("old_date", oldDate),
		zap.String("new_date", newDate),
		zap.String("run_id", s.runID),
		zap.String("new_path", s.currentRunPath),
	)

	return true, nil
}

// RunID returns the run id, e.g. "run_1".
func (s *Manager) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runID
}

// CurrentDate returns the date folder in use.
func (s *Manager) CurrentDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentDate
}

// CurrentRunPath returns the run folder in use.
func (s *Manager) CurrentRunPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentRunPath
}

// FilePath returns the path of filename inside the current run folder.
func (s *Manager) FilePath(filename string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filepath.Join(s.currentRunPath, filename)
}

// ListRuns returns the run ids of date ordered by run number.
func ListRuns(dir, date string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dir, date))
	if os.IsNotExist(err) {
		return []string{}, nil
	}

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to read date directory", err)
	}

	runs := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() && runPattern.MatchString(entry.Name()) {
			runs = append(runs, entry.Name())
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		numI, _ := strconv.Atoi(runs[i][4:])
		numJ, _ := strconv.Atoi(runs[j][4:])

		return numI < numJ
	})

	return runs, nil
}

// ListDates returns every date folder under dir in ascending order.
func ListDates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to read journal directory", err)
	}

	dates := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() && datePattern.MatchString(entry.Name()) {
			dates = append(dates, entry.Name())
		}
	}

	sort.Strings(dates)

	return dates, nil
}

// nextRunNumber returns one more than the highest run of date. Caller holds mu.
func (s *Manager) nextRunNumber(date string) (int, error) {
	runs, err := ListRuns(s.dir, date)
	if err != nil {
		return 0, err
	}

	highest := 0

	for _, run := range runs {
		if n, err := strconv.Atoi(run[4:]); err == nil && n > highest {
			highest = n
		}
	}

	return highest + 1, nil
}

// createRunFolder creates the folder of the current date and run. Caller holds mu.
func (s *Manager) createRunFolder() error {
	s.currentRunPath = filepath.Join(s.dir, s.currentDate, s.runID)

	if err := os.MkdirAll(s.currentRunPath, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to create run folder", err)
	}

	return nil
}
