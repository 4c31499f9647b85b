package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name    string
	running int32
	overlap int32
	runs    int32
	delay   time.Duration
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	if !atomic.CompareAndSwapInt32(&j.running, 0, 1) {
		atomic.AddInt32(&j.overlap, 1)
		return nil
	}
	defer atomic.StoreInt32(&j.running, 0)
	atomic.AddInt32(&j.runs, 1)
	time.Sleep(j.delay)
	return nil
}

func TestScheduler_RunNow_ExecutesJobImmediately(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "immediate"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
}

func TestScheduler_AddJob_RejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a valid cron expression", &countingJob{name: "bad"})
	assert.Error(t, err)
}

func TestScheduler_PerJobLock_PreventsConcurrentRunsOfSameJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "locked", delay: 20 * time.Millisecond}

	var wg sync.WaitGroup
	lock := s.lockFor(job.Name())
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !lock.TryLock() {
				return
			}
			defer lock.Unlock()
			_ = job.Run()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&job.runs), int32(1))
}

func TestScheduler_LockFor_ReturnsSameMutexForSameJobName(t *testing.T) {
	s := New(zerolog.Nop())
	a := s.lockFor("job-a")
	b := s.lockFor("job-a")
	assert.Same(t, a, b)

	c := s.lockFor("job-b")
	assert.NotSame(t, a, c)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zerolog.Nop())
	s.Start()
	s.Stop()
}
