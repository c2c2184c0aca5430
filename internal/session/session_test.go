package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/host/hosttest"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, h *hosttest.Host, opts Options) *Session {
	t.Helper()
	s, err := Connect(context.Background(), &hosttest.Dialer{Host: h}, opts)
	require.NoError(t, err)
	return s
}

func TestConnectNegotiatesCCSID(t *testing.T) {
	tests := []struct {
		name     string
		explicit int
		profile  int
		expected int
	}{
		{name: "Explicit CCSID", explicit: 1208, profile: 37, expected: 1208},
		{name: "Profile CCSID", profile: 297, expected: 297},
		{name: "Profile 5026 replaced", profile: 5026, expected: 5035},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hosttest.New()
			h.ProfileCCSIDValue = tt.profile
			s := connect(t, h, Options{Host: "dev", User: "builder", CCSID: tt.explicit})

			assert.Equal(t, tt.expected, s.CCSID())
			assert.Equal(t, "BUILDER", s.User())
			assert.Equal(t, host.DefaultPool, s.StoragePool())
			assert.Equal(t, h.CommandJob, s.CommandJob())
			assert.Equal(t, []string{"CHGJOB CCSID(" + strconv.Itoa(tt.expected) + ") INQMSGRPY(*DFT)"}, h.RecordedCommands())
		})
	}
}

func TestConnectRejectsInvalidCCSID(t *testing.T) {
	tests := []struct {
		name     string
		explicit int
		profile  int
	}{
		{name: "Explicit above range", explicit: 65536},
		{name: "Profile zero", profile: 0},
		{name: "Profile negative", profile: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hosttest.New()
			h.ProfileCCSIDValue = tt.profile

			_, err := Connect(context.Background(), &hosttest.Dialer{Host: h}, Options{CCSID: tt.explicit})
			var connErr *models.ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.ErrorIs(t, err, models.ErrInvalidCharset)
			assert.True(t, h.Closed)
			assert.Equal(t, 0, h.CommandOpened, "no sub-session opened")
		})
	}
}

func TestConnectFailsWhenJobDefaultsFail(t *testing.T) {
	h := hosttest.New()
	h.OnCommand = func(command string) (bool, []models.Message, error) {
		return false, []models.Message{{ID: "CPF1317", Severity: 40, Text: "No response from subsystem."}}, nil
	}

	_, err := Connect(context.Background(), &hosttest.Dialer{Host: h}, Options{CCSID: 37})
	var connErr *models.ConnectionError
	require.ErrorAs(t, err, &connErr)
	var cmdErr *models.CommandError
	assert.ErrorAs(t, err, &cmdErr)
	assert.True(t, h.Closed)
	assert.Equal(t, 1, h.CommandClosed)
}

func TestConnectDialFailure(t *testing.T) {
	_, err := Connect(context.Background(), &hosttest.Dialer{Err: errors.New("refused")}, Options{Host: "dev"})
	var connErr *models.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "dev", connErr.Host)
}

func TestExecuteCommand(t *testing.T) {
	h := hosttest.New()
	s := connect(t, h, Options{CCSID: 37})

	h.OnCommand = func(command string) (bool, []models.Message, error) {
		return true, []models.Message{
			{ID: "CPI0001", Text: "one"},
			{ID: "CPD0002", Text: "two", Severity: 30},
			{ID: "CPC0003", Text: "three"},
		}, nil
	}

	result, err := s.ExecuteCommand(context.Background(), "   DSPLIBL OUTPUT(*PRINT)  \n")
	require.NoError(t, err)
	assert.Equal(t, "DSPLIBL OUTPUT(*PRINT)", result.Command)
	assert.True(t, result.Successful)
	require.Len(t, result.Messages, 3)
	last, _ := result.LastMessage()
	assert.Equal(t, "three", last.Text)
	assert.Equal(t, "DSPLIBL OUTPUT(*PRINT)", h.RecordedCommands()[1])

	h.OnCommand = func(command string) (bool, []models.Message, error) {
		return false, nil, errors.New("connection reset")
	}
	_, err = s.ExecuteCommand(context.Background(), "CRTLIB X")
	var cmdErr *models.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "CRTLIB X", cmdErr.Command)
}

func TestExecuteCommandIsSerialized(t *testing.T) {
	h := hosttest.New()
	s := connect(t, h, Options{CCSID: 37})

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	h.OnCommand = func(command string) (bool, []models.Message, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return true, nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ExecuteCommand(context.Background(), "DLYJOB DLY(0)")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInFlight)
}

func TestFifoLockOrder(t *testing.T) {
	var l fifoLock
	require.NoError(t, l.Lock(context.Background()))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Lock(context.Background()))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			l.Unlock()
		}(i)
		assert.Eventually(t, func() bool {
			l.mu.Lock()
			defer l.mu.Unlock()
			return len(l.waiters) == i+1
		}, time.Second, time.Millisecond)
	}

	l.Unlock()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFifoLockCancelledWaiter(t *testing.T) {
	var l fifoLock
	require.NoError(t, l.Lock(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Lock(ctx), context.Canceled)

	l.Unlock()
	require.NoError(t, l.Lock(context.Background()), "cancelled waiter left the queue")
	l.Unlock()
}

func TestChangeStoragePool(t *testing.T) {
	ctx := context.Background()

	t.Run("Default to default is a no-op", func(t *testing.T) {
		h := hosttest.New()
		s := connect(t, h, Options{CCSID: 37})
		for _, target := range []string{"", "1", "*SYSBAS", "*sysbas"} {
			require.NoError(t, s.ChangeStoragePool(ctx, target))
		}
		assert.Empty(t, h.PoolRequests)
	})

	t.Run("Same named pool is a no-op", func(t *testing.T) {
		h := hosttest.New()
		s := connect(t, h, Options{CCSID: 37})
		require.NoError(t, s.ChangeStoragePool(ctx, "iasp1"))
		require.NoError(t, s.ChangeStoragePool(ctx, "IASP1"))
		assert.Equal(t, []string{"iasp1"}, h.PoolRequests)
		assert.Equal(t, "IASP1", s.StoragePool())
	})

	t.Run("Back to default uses *NONE", func(t *testing.T) {
		h := hosttest.New()
		s := connect(t, h, Options{CCSID: 37})
		require.NoError(t, s.ChangeStoragePool(ctx, "IASP1"))
		require.NoError(t, s.ChangeStoragePool(ctx, ""))
		assert.Equal(t, []string{"IASP1", "*NONE"}, h.PoolRequests)
		assert.Equal(t, host.DefaultPool, s.StoragePool())
	})

	t.Run("Switch between named pools", func(t *testing.T) {
		h := hosttest.New()
		s := connect(t, h, Options{CCSID: 37})
		require.NoError(t, s.ChangeStoragePool(ctx, "IASP1"))
		require.NoError(t, s.ChangeStoragePool(ctx, "IASP2"))
		assert.Equal(t, "IASP2", s.StoragePool())
	})

	t.Run("Host reports another pool", func(t *testing.T) {
		h := hosttest.New()
		h.PoolResponse = map[string]string{"B": "C"}
		s := connect(t, h, Options{CCSID: 37})

		err := s.ChangeStoragePool(ctx, "B")
		var connErr *models.ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.ErrorIs(t, err, models.ErrPoolSwitchFailed)
		assert.Equal(t, "C", s.StoragePool())

		h.PoolResponse = nil
		require.NoError(t, s.ChangeStoragePool(ctx, ""))
		assert.Equal(t, []string{"B", "*NONE"}, h.PoolRequests)
		assert.Equal(t, host.DefaultPool, s.StoragePool())
	})
}

func TestDisconnect(t *testing.T) {
	h := hosttest.New()
	s := connect(t, h, Options{CCSID: 37})

	calls := 0
	s.OnDisconnect(func() { calls++ })

	s.Disconnect()
	s.Disconnect()
	assert.Equal(t, 1, calls)
	assert.True(t, h.Closed)
	assert.Equal(t, 1, h.CommandClosed)

	_, err := s.ExecuteCommand(context.Background(), "DSPLIBL")
	assert.Error(t, err)
}

func TestRemoteDisconnectNotifies(t *testing.T) {
	h := hosttest.New()
	s := connect(t, h, Options{CCSID: 37})

	dropped := false
	s.OnDisconnect(func() { dropped = true })
	h.Drop()
	assert.True(t, dropped)
}

func TestRemoteDisconnectReleasesHostResources(t *testing.T) {
	h := hosttest.New()
	s := connect(t, h, Options{CCSID: 37})

	calls := 0
	s.OnDisconnect(func() { calls++ })

	h.Drop()
	s.Disconnect()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, h.CommandClosed)
	assert.True(t, h.Closed)

	_, err := s.ExecuteCommand(context.Background(), "DSPLIBL")
	assert.Error(t, err)
}

func TestEnv(t *testing.T) {
	h := hosttest.New()
	s := connect(t, h, Options{User: "builder", CCSID: 1208})

	env := s.Env()
	assert.Equal(t, "TESTSYS", env["IBMI_HOST"])
	assert.Equal(t, "BUILDER", env["IBMI_PROFILE"])
	assert.Equal(t, "1208", env["IBMI_CCSID"])
	assert.Equal(t, "000001/QUSER/QZRCSRVS", env["IBMI_COMMAND_JOB"])
	assert.Equal(t, "7.5", env["IBMI_VERSION"])
}

func TestWithTempFile(t *testing.T) {
	h := hosttest.New()
	s := connect(t, h, Options{CCSID: 37})

	var seen string
	err := s.WithTempFile(context.Background(), func(temp string) error {
		seen = temp
		h.FS.WriteFile(temp, []byte("x"), 1208)
		return errors.New("task failed")
	})
	assert.EqualError(t, err, "task failed")
	assert.True(t, strings.HasPrefix(seen, "/tmp/"))
	assert.False(t, h.FS.Exists(seen), "temp file removed after failure")
}
