package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/scatter/model/trial"
	"github.com/viant/scatter/progress"
	"github.com/viant/scatter/service/backend"
	"github.com/viant/scatter/service/process"
)

var indexExpr = regexp.MustCompile(`(\d{4})\.in`)

// fakeRunner simulates worker and judge commands keyed by trial index
type fakeRunner struct {
	mu         sync.Mutex
	failed     map[int]bool
	judge      map[int]string
	judgeFail  map[int]bool
	workers    []int
	judged     []int
	running    int32
	maxRunning int32
	delay      time.Duration
}

func (r *fakeRunner) Run(ctx context.Context, command string) (*process.Result, error) {
	match := indexExpr.FindStringSubmatch(command)
	if match == nil {
		return nil, fmt.Errorf("unexpected command: %v", command)
	}
	index, _ := strconv.Atoi(match[1])
	if strings.HasPrefix(command, "judge ") {
		r.mu.Lock()
		r.judged = append(r.judged, index)
		r.mu.Unlock()
		if r.judgeFail[index] {
			return &process.Result{Command: command, Output: "panic", Status: 2}, nil
		}
		output, ok := r.judge[index]
		if !ok {
			output = fmt.Sprintf("Score = %d\n%d", index*100, index*100)
		}
		return &process.Result{Command: command, Output: output}, nil
	}
	current := atomic.AddInt32(&r.running, 1)
	for {
		seen := atomic.LoadInt32(&r.maxRunning)
		if current <= seen || atomic.CompareAndSwapInt32(&r.maxRunning, seen, current) {
			break
		}
	}
	time.Sleep(r.delay)
	atomic.AddInt32(&r.running, -1)
	r.mu.Lock()
	r.workers = append(r.workers, index)
	r.mu.Unlock()
	if r.failed[index] {
		return &process.Result{Command: command, Output: "worker crashed", Status: 1}, nil
	}
	return &process.Result{Command: command}, nil
}

func newInputs(t *testing.T, seeds ...int) (string, string) {
	inputDir, err := os.MkdirTemp("", "scatter-in")
	require.NoError(t, err)
	workDir, err := os.MkdirTemp("", "scatter-work")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.RemoveAll(inputDir)
		_ = os.RemoveAll(workDir)
	})
	fs := afs.New()
	for _, seed := range seeds {
		err := fs.Upload(context.Background(), path.Join(inputDir, fmt.Sprintf("%04d.txt", seed)), file.DefaultFileOsMode, bytes.NewBufferString(fmt.Sprintf("instance %d", seed)))
		require.NoError(t, err)
	}
	return inputDir, workDir
}

func testConfig(inputDir, workDir string, workers int) Config {
	config := DefaultConfig()
	config.Workers = workers
	config.PollInterval = time.Millisecond
	config.Worker = "worker"
	config.Judge = "judge"
	config.InputURL = inputDir
	config.WorkURL = workDir
	return config
}

func TestBackend_Dispatch(t *testing.T) {
	var testCases = []struct {
		description     string
		seeds           []int
		workers         int
		failed          map[int]bool
		expectSucceeded []int
		expectFailed    []int
	}{
		{
			description:     "trial 2 exits non-zero",
			seeds:           []int{0, 1, 2},
			workers:         2,
			failed:          map[int]bool{2: true},
			expectSucceeded: []int{0, 1},
			expectFailed:    []int{2},
		},
		{
			description:     "more trials than workers",
			seeds:           []int{10, 11, 12, 13, 14, 15, 16},
			workers:         3,
			expectSucceeded: []int{0, 1, 2, 3, 4, 5, 6},
		},
		{
			description:     "single worker",
			seeds:           []int{3, 4},
			workers:         1,
			failed:          map[int]bool{0: true},
			expectSucceeded: []int{1},
			expectFailed:    []int{0},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			inputDir, workDir := newInputs(t, testCase.seeds...)
			runner := &fakeRunner{failed: testCase.failed, delay: 5 * time.Millisecond}
			srv, err := New(testConfig(inputDir, workDir, testCase.workers), runner, afs.New())
			require.NoError(t, err)

			ctx, tracker := progress.WithNewTracker(context.Background(), "eval", srv.Name(), nil)
			pending, err := srv.Dispatch(ctx, trial.NewSet([]byte(`{"a":1}`), testCase.seeds))
			require.NoError(t, err)
			outcome := pending.(*Outcome)
			assert.Equal(t, testCase.expectSucceeded, indexes(outcome.Succeeded))
			assert.ElementsMatch(t, testCase.expectFailed, indexes(outcome.Failed))
			assert.LessOrEqual(t, int(runner.maxRunning), testCase.workers)
			assert.Len(t, runner.workers, len(testCase.seeds))

			snapshot := tracker.Snapshot()
			assert.Equal(t, len(testCase.seeds), snapshot.Dispatched)
			assert.Equal(t, len(testCase.expectFailed), snapshot.Failed)
			assert.Equal(t, 0, snapshot.Pending)

			for i, seed := range testCase.seeds {
				staged, err := os.ReadFile(path.Join(workDir, fmt.Sprintf("%04d.in", i)))
				require.NoError(t, err)
				assert.Equal(t, fmt.Sprintf("instance %d", seed), string(staged))
			}
		})
	}
}

func TestBackend_Collect(t *testing.T) {
	seeds := []int{7, 8, 9, 10}
	inputDir, workDir := newInputs(t, seeds...)
	runner := &fakeRunner{
		failed:    map[int]bool{3: true},
		judge:     map[int]string{1: "no score here"},
		judgeFail: map[int]bool{2: true},
	}
	config := testConfig(inputDir, workDir, 2)
	config.ScoreScale = 1000
	srv, err := New(config, runner, nil)
	require.NoError(t, err)

	scores, err := backend.Sample(context.Background(), srv, trial.NewSet(nil, seeds))
	require.NoError(t, err)
	// trial 3 failed and is absent; malformed and failed judge runs score 0
	assert.EqualValues(t, map[int]float64{7: 0, 8: 0, 9: 0}, scores)
	assert.Equal(t, []int{0, 1, 2}, runner.judged)
}

func TestBackend_CollectScale(t *testing.T) {
	seeds := []int{1, 2}
	inputDir, workDir := newInputs(t, seeds...)
	runner := &fakeRunner{judge: map[int]string{0: "250", 1: "log line\n750\n"}}
	config := testConfig(inputDir, workDir, 4)
	config.ScoreScale = 1000
	srv, err := New(config, runner, nil)
	require.NoError(t, err)
	scores, err := backend.Sample(context.Background(), srv, trial.NewSet(nil, seeds))
	require.NoError(t, err)
	assert.EqualValues(t, map[int]float64{1: 0.25, 2: 0.75}, scores)
}

func TestBackend_JudgeDiagnosticsOnStderr(t *testing.T) {
	seeds := []int{3}
	inputDir, workDir := newInputs(t, seeds...)
	config := testConfig(inputDir, workDir, 1)
	config.Worker = `sh -c 'cat; echo "worker log" >&2'`
	config.Judge = `sh -c 'echo 640; echo "judging $1" >&2'`
	config.ScoreScale = 1000
	srv, err := New(config, nil, nil)
	require.NoError(t, err)

	scores, err := backend.Sample(context.Background(), srv, trial.NewSet(nil, seeds))
	require.NoError(t, err)
	assert.EqualValues(t, map[int]float64{3: 0.64}, scores)
	output, err := afs.New().DownloadWithURL(context.Background(), path.Join(workDir, "0000.out"))
	require.NoError(t, err)
	assert.Equal(t, "instance 3", string(output))
}

// unreachableFS fails every existence check
type unreachableFS struct {
	afs.Service
}

func (f *unreachableFS) Exists(ctx context.Context, URL string, options ...storage.Option) (bool, error) {
	return false, errors.New("storage unreachable")
}

func TestBackend_DispatchStorageError(t *testing.T) {
	inputDir, workDir := newInputs(t, 0)
	srv, err := New(testConfig(inputDir, workDir, 1), &fakeRunner{}, &unreachableFS{Service: afs.New()})
	require.NoError(t, err)
	_, err = srv.Dispatch(context.Background(), trial.NewSet(nil, []int{0}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage unreachable")
}

func TestBackend_MissingInput(t *testing.T) {
	inputDir, workDir := newInputs(t, 0)
	runner := &fakeRunner{}
	srv, err := New(testConfig(inputDir, workDir, 2), runner, nil)
	require.NoError(t, err)
	pending, err := srv.Dispatch(context.Background(), trial.NewSet(nil, []int{0, 1}))
	require.NoError(t, err)
	outcome := pending.(*Outcome)
	assert.Equal(t, []int{0}, indexes(outcome.Succeeded))
	assert.Equal(t, []int{1}, indexes(outcome.Failed))
}

func TestBackend_WorkerCommand(t *testing.T) {
	inputDir, workDir := newInputs(t, 5)
	var commands []string
	var mu sync.Mutex
	runner := process.RunnerFunc(func(ctx context.Context, command string) (*process.Result, error) {
		mu.Lock()
		commands = append(commands, command)
		mu.Unlock()
		return &process.Result{Command: command, Output: "1"}, nil
	})
	srv, err := New(testConfig(inputDir, workDir, 1), runner, nil)
	require.NoError(t, err)
	_, err = backend.Sample(context.Background(), srv, trial.NewSet([]byte(`{"T0":2000}`), []int{5}))
	require.NoError(t, err)
	require.Len(t, commands, 2)
	in := path.Join(workDir, "0000.in")
	out := path.Join(workDir, "0000.out")
	assert.Equal(t, fmt.Sprintf(`worker '{"T0":2000}' < '%s' > '%s'`, in, out), commands[0])
	assert.Equal(t, fmt.Sprintf(`judge '%s' '%s'`, in, out), commands[1])
}

func TestConfig_Validate(t *testing.T) {
	config := DefaultConfig()
	assert.Error(t, config.Validate())
	config.Worker = "w"
	config.Judge = "j"
	assert.NoError(t, config.Validate())
	config.Workers = 0
	assert.Error(t, config.Validate())
}

func indexes(trials []*trial.Trial) []int {
	var ret []int
	for _, t := range trials {
		ret = append(ret, t.Index)
	}
	return ret
}
