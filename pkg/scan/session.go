// Package scan implements the barcode-scan session: a state machine
// coordinating camera acquisition, live decoding, detection
// confirmation, and ISBN lookup.
//
// The session owns exactly one state field; every transition goes
// through the session's own transition method, and the decoder's
// asynchronous callback never mutates state directly. Camera and
// decoder resources are released on every exit path, including closing
// the session while acquisition is still in flight.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/homelib/homelib-client/pkg/books"
)

var (
	scanSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_scan_sessions_total",
		Help: "Total scan sessions opened",
	})

	scanDetectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_scan_detections_total",
		Help: "Total accepted barcode detections",
	})

	scanRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_scan_rejected_candidates_total",
		Help: "Total decoder candidates rejected by the ISBN gate",
	})

	scanLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_scan_lookup_failures_total",
		Help: "Total ISBN lookups that failed or found nothing",
	})
)

// State is a scan session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateScanning  State = "scanning"
	StateDetected  State = "detected"
	StateResolving State = "resolving"
	StateSuccess   State = "success"

	// StateError is recoverable: the manual-entry path stays
	// available, and lookup failures resume scanning.
	StateError State = "retryable_error"
)

// ErrCameraBusy is returned when another session holds the camera.
var ErrCameraBusy = errors.New("camera already in use")

// Stream is a live camera stream. Stop must be idempotent.
type Stream interface {
	Stop()
}

// Camera grants exclusive access to the device camera. Acquire blocks
// until the permission prompt resolves or ctx is done.
type Camera interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Decoder runs barcode detection against a live stream, reporting
// every candidate code through the callback.
type Decoder interface {
	Start(stream Stream, onCode func(code string)) error
	Pause()
	Resume()
	Stop()
}

// Resolver looks up book metadata for an accepted code.
type Resolver interface {
	LookupISBN(ctx context.Context, code string) (*books.Metadata, error)
}

// Callbacks notify the UI layer of session progress. All fields are
// optional.
type Callbacks struct {
	// OnStateChange is invoked after every transition.
	OnStateChange func(from, to State)

	// OnDetected acknowledges an accepted code (the haptic/visual
	// cue) before resolution starts.
	OnDetected func(code string)

	// OnResolved hands the resolved record to the book-creation
	// form.
	OnResolved func(meta *books.Metadata)

	// OnError reports recoverable failures (camera, decoder,
	// lookup). The session is never fatal to the application; manual
	// entry is always available.
	OnError func(err error)
}

// cameraGuard enforces that at most one session owns the camera.
var cameraGuard sync.Mutex
var cameraHeld bool

func acquireGuard() bool {
	cameraGuard.Lock()
	defer cameraGuard.Unlock()
	if cameraHeld {
		return false
	}
	cameraHeld = true
	return true
}

func releaseGuard() {
	cameraGuard.Lock()
	cameraHeld = false
	cameraGuard.Unlock()
}

// Session coordinates one scan attempt. Create with NewSession, drive
// with Open, and always Close — Close is idempotent and safe from
// every state.
type Session struct {
	id       string
	camera   Camera
	decoder  Decoder
	resolver Resolver
	cb       Callbacks

	mu        sync.Mutex
	state     State
	stream    Stream
	decoding  bool
	closed    bool
	ownsGuard bool

	logger zerolog.Logger
}

// NewSession creates an idle session. Camera, decoder and resolver are
// required.
func NewSession(camera Camera, decoder Decoder, resolver Resolver, cb Callbacks) (*Session, error) {
	if camera == nil {
		return nil, fmt.Errorf("camera is required")
	}
	if decoder == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}

	id := uuid.NewString()
	return &Session{
		id:       id,
		camera:   camera,
		decoder:  decoder,
		resolver: resolver,
		cb:       cb,
		state:    StateIdle,
		logger:   log.With().Str("component", "scan-session").Str("session_id", id).Logger(),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transitionLocked moves the machine to a new state. Callers hold s.mu.
func (s *Session) transitionLocked(to State) {
	from := s.state
	s.state = to
	s.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("Scan state transition")
	if s.cb.OnStateChange != nil {
		s.cb.OnStateChange(from, to)
	}
}

// Open starts the session: acquires the camera, binds the decoder, and
// begins scanning. Failures land in StateError with resources
// released; the caller can fall back to manual entry and retry.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("session already open (state %s)", s.state)
	}
	if !acquireGuard() {
		s.transitionLocked(StateError)
		s.mu.Unlock()
		s.fail(ErrCameraBusy)
		return ErrCameraBusy
	}
	s.ownsGuard = true
	s.transitionLocked(StateAcquiring)
	s.mu.Unlock()

	scanSessionsTotal.Inc()

	// The permission prompt may take arbitrarily long; the lock is
	// not held while waiting.
	stream, err := s.camera.Acquire(ctx)

	s.mu.Lock()
	if s.closed {
		// Closed while acquiring: release whatever resolved, even
		// after cancellation was requested.
		s.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		s.releaseGuardOnce()
		return nil
	}
	if err != nil {
		s.transitionLocked(StateError)
		s.releaseGuardLocked()
		s.mu.Unlock()
		s.fail(fmt.Errorf("camera unavailable, use manual entry: %w", err))
		return err
	}

	s.stream = stream
	if err := s.decoder.Start(stream, s.onCandidate); err != nil {
		// Decoder failure must not leave the camera acquired.
		s.stream = nil
		s.transitionLocked(StateError)
		s.releaseGuardLocked()
		s.mu.Unlock()
		stream.Stop()
		s.fail(fmt.Errorf("decoder init failed, use manual entry: %w", err))
		return err
	}

	s.decoding = true
	s.transitionLocked(StateScanning)
	s.mu.Unlock()
	return nil
}

// onCandidate is the decoder callback. Candidates that do not match
// the ISBN gate are ignored without a state transition; an accepted
// candidate pauses decoding and hands off to resolution.
func (s *Session) onCandidate(code string) {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return
	}

	if !IsValidISBN(code) {
		scanRejectedTotal.Inc()
		s.logger.Debug().Str("code", code).Msg("Candidate rejected, still scanning")
		s.mu.Unlock()
		return
	}

	normalized := NormalizeCode(code)
	s.transitionLocked(StateDetected)
	s.decoder.Pause()
	s.mu.Unlock()

	scanDetectionsTotal.Inc()
	if s.cb.OnDetected != nil {
		s.cb.OnDetected(normalized)
	}

	go s.resolve(normalized)
}

// resolve looks up the accepted code. Success tears the session down
// and hands off the metadata; failure resumes scanning so the user can
// try another code without reopening the camera. Retries are
// unlimited.
func (s *Session) resolve(code string) {
	s.mu.Lock()
	if s.closed || s.state != StateDetected {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(StateResolving)
	s.mu.Unlock()

	meta, err := s.resolver.LookupISBN(context.Background(), code)

	s.mu.Lock()
	if s.closed || s.state != StateResolving {
		s.mu.Unlock()
		return
	}

	if err != nil {
		scanLookupFailures.Inc()
		s.transitionLocked(StateError)
		s.mu.Unlock()
		s.fail(fmt.Errorf("lookup %s: %w", code, err))

		// Deliberate exception to forward-only progression: resume
		// scanning instead of terminating.
		s.mu.Lock()
		if !s.closed && s.state == StateError {
			s.transitionLocked(StateScanning)
			s.decoder.Resume()
		}
		s.mu.Unlock()
		return
	}

	s.transitionLocked(StateSuccess)
	s.teardownLocked()
	s.mu.Unlock()

	if s.cb.OnResolved != nil {
		s.cb.OnResolved(meta)
	}
}

// Close releases the stream and decoder unconditionally. Idempotent
// and safe to call from every state, including Idle and a second
// consecutive call.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.teardownLocked()
	if s.state != StateSuccess {
		s.transitionLocked(StateIdle)
	}
	s.mu.Unlock()
}

// teardownLocked stops decoder and stream and releases the camera
// guard. Callers hold s.mu.
func (s *Session) teardownLocked() {
	if s.decoding {
		s.decoder.Stop()
		s.decoding = false
	}
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
	}
	s.releaseGuardLocked()
}

func (s *Session) releaseGuardLocked() {
	if s.ownsGuard {
		releaseGuard()
		s.ownsGuard = false
	}
}

// releaseGuardOnce is the unlocked variant for the close-while-
// acquiring path.
func (s *Session) releaseGuardOnce() {
	s.mu.Lock()
	s.releaseGuardLocked()
	s.mu.Unlock()
}

// fail reports a recoverable error.
func (s *Session) fail(err error) {
	s.logger.Warn().Err(err).Msg("Scan session error")
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
}
