package mount

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"gvfs/internal/trace"
	"gvfs/internal/watcher"
)

const testInterval = 10 * time.Millisecond

type fakeRegistry struct {
	mu    sync.Mutex
	repos []RepoRegistration
	err   error
}

func (r *fakeRegistry) TryGetActiveReposForUser(userSID string) ([]RepoRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var active []RepoRegistration
	for _, repo := range r.repos {
		if repo.IsActive && repo.OwnerSID == userSID {
			active = append(active, repo)
		}
	}
	return active, nil
}

type fakeMounter struct {
	mu       sync.Mutex
	fail     map[string]bool
	calls    []string
	disposed bool
}

func (m *fakeMounter) Mount(enlistmentRoot string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, enlistmentRoot)
	return !m.fail[enlistmentRoot]
}

func (m *fakeMounter) CurrentUserSID() string { return "1000" }

func (m *fakeMounter) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
}

func (m *fakeMounter) mountCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type fakeSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *fakeSink) SendNotification(tracer *trace.Tracer, sessionID int, n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, n.Title+": "+n.Message)
}

func (s *fakeSink) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// newTestSupervisor wires a supervisor whose "volume root" of an enlistment is
// the enlistment's parent directory.
func newTestSupervisor(t *testing.T, registry Registry, mounter *fakeMounter, sink *fakeSink) *Supervisor {
	t.Helper()
	s := NewSupervisor(Config{
		SessionID:     1,
		Registry:      registry,
		Mounter:       mounter,
		Sink:          sink,
		Tracer:        trace.New("Supervisor"),
		RetryInterval: testInterval,
		VolumeRootOf:  filepath.Dir,
	})
	t.Cleanup(s.Dispose)
	return s
}

func TestSupervisorMountsWhenVolumePresent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	volume := t.TempDir()
	repo := filepath.Join(volume, "repo1")

	registry := &fakeRegistry{repos: []RepoRegistration{
		{EnlistmentRoot: repo, OwnerSID: "1000", IsActive: true},
	}}
	mounter := &fakeMounter{}
	sink := &fakeSink{}

	s := newTestSupervisor(t, registry, mounter, sink)
	s.Start()

	g.Expect(mounter.mountCalls()).To(Equal([]string{repo}))
	g.Expect(sink.sent()).To(Equal([]string{
		"GVFS AutoMount: " + repo + " has been mounted successfully",
	}))
	g.Expect(s.ActiveMounts()).To(Equal([]string{repo}))

	// All volumes were present, so the retry timer stays idle and the
	// already-mounted repo is never mounted twice.
	g.Consistently(mounter.mountCalls, 5*testInterval, testInterval).
		Should(HaveLen(1))
}

func TestSupervisorRetriesUntilVolumeAppears(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	base := t.TempDir()
	volume1 := filepath.Join(base, "V1")
	volume2 := filepath.Join(base, "V2")
	if err := os.Mkdir(volume1, 0755); err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	repo1 := filepath.Join(volume1, "repo1")
	repo2 := filepath.Join(volume2, "repo2")

	registry := &fakeRegistry{repos: []RepoRegistration{
		{EnlistmentRoot: repo1, OwnerSID: "1000", IsActive: true},
		{EnlistmentRoot: repo2, OwnerSID: "1000", IsActive: true},
	}}
	mounter := &fakeMounter{}
	sink := &fakeSink{}

	s := newTestSupervisor(t, registry, mounter, sink)
	s.Start()

	// First sweep mounts repo1 only and arms the retry timer.
	g.Expect(mounter.mountCalls()).To(Equal([]string{repo1}))
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		g.Expect(s.timer).NotTo(BeNil())
	}()

	// Volume V2 appears; a later tick mounts repo2.
	if err := os.Mkdir(volume2, 0755); err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	g.Eventually(mounter.mountCalls, time.Second, testInterval).
		Should(Equal([]string{repo1, repo2}))

	// Everything is mounted; the timer goes idle.
	g.Eventually(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.timer == nil
	}, time.Second, testInterval).Should(BeTrue())
}

func TestSupervisorDoesNotRetryFailedMounts(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	volume := t.TempDir()
	repo := filepath.Join(volume, "broken")

	registry := &fakeRegistry{repos: []RepoRegistration{
		{EnlistmentRoot: repo, OwnerSID: "1000", IsActive: true},
	}}
	mounter := &fakeMounter{fail: map[string]bool{repo: true}}
	sink := &fakeSink{}

	s := newTestSupervisor(t, registry, mounter, sink)
	s.Start()

	g.Expect(sink.sent()).To(Equal([]string{
		"GVFS AutoMount: " + repo + " failed to mount",
	}))

	// The volume was present, so the failure does not arm the timer:
	// only missing volumes cause retries.
	g.Consistently(mounter.mountCalls, 10*testInterval, testInterval).
		Should(HaveLen(1))
}

func TestSupervisorRegistryFailureLeavesTimerAlone(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	registry := &fakeRegistry{err: errors.New("registry store offline")}
	mounter := &fakeMounter{}
	sink := &fakeSink{}

	s := newTestSupervisor(t, registry, mounter, sink)
	s.Start()

	g.Expect(mounter.mountCalls()).To(BeEmpty())
	g.Expect(sink.sent()).To(BeEmpty())
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		g.Expect(s.timer).To(BeNil())
	}()
}

func TestSupervisorIgnoresOtherUsersRepos(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	volume := t.TempDir()
	registry := &fakeRegistry{repos: []RepoRegistration{
		{EnlistmentRoot: filepath.Join(volume, "mine"), OwnerSID: "1000", IsActive: true},
		{EnlistmentRoot: filepath.Join(volume, "theirs"), OwnerSID: "2000", IsActive: true},
		{EnlistmentRoot: filepath.Join(volume, "inactive"), OwnerSID: "1000", IsActive: false},
	}}
	mounter := &fakeMounter{}
	sink := &fakeSink{}

	s := newTestSupervisor(t, registry, mounter, sink)
	s.Start()

	g.Expect(mounter.mountCalls()).To(Equal([]string{filepath.Join(volume, "mine")}))
}

func TestSupervisorWatcherTriggersImmediateSweep(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	base := t.TempDir()
	volume := filepath.Join(base, "removable")
	repo := filepath.Join(volume, "repo")

	registry := &fakeRegistry{repos: []RepoRegistration{
		{EnlistmentRoot: repo, OwnerSID: "1000", IsActive: true},
	}}
	mounter := &fakeMounter{}
	sink := &fakeSink{}

	volWatch := watcher.NewWithInterval(trace.New("VolumeWatcher"), testInterval)
	t.Cleanup(volWatch.Dispose)

	s := NewSupervisor(Config{
		SessionID: 1,
		Registry:  registry,
		Mounter:   mounter,
		Sink:      sink,
		Tracer:    trace.New("Supervisor"),
		Watcher:   volWatch,
		// Long retry interval: only the watcher callback can trigger
		// the second sweep within the test window.
		RetryInterval: time.Hour,
		VolumeRootOf:  filepath.Dir,
	})
	t.Cleanup(s.Dispose)

	s.Start()
	g.Expect(mounter.mountCalls()).To(BeEmpty())

	if err := os.Mkdir(volume, 0755); err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	g.Eventually(mounter.mountCalls, time.Second, testInterval).
		Should(Equal([]string{repo}))
}

func TestSupervisorDispose(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	registry := &fakeRegistry{}
	mounter := &fakeMounter{}
	sink := &fakeSink{}

	s := newTestSupervisor(t, registry, mounter, sink)
	s.Start()
	s.Dispose()

	mounter.mu.Lock()
	disposed := mounter.disposed
	mounter.mu.Unlock()
	g.Expect(disposed).To(BeTrue())

	// Start after dispose is a no-op.
	s.Start()
	g.Expect(mounter.mountCalls()).To(BeEmpty())
}
