// Package signature runs the two-party signature capture followed by a GPS
// fix, as an explicit state machine with one finalize entry point.
package signature

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
)

// DefaultLocationTimeout 定位超时
const DefaultLocationTimeout = 15 * time.Second

var (
	ErrInvalidState     = errors.New("signature flow: invalid state for this action")
	ErrEmptyStroke      = errors.New("signature flow: empty stroke")
	ErrAlreadyDone      = errors.New("signature flow: already finalized")
	ErrCancelled        = errors.New("signature flow: cancelled")
	ErrFinalizing       = errors.New("signature flow: finalize in progress")
	ErrServicesDisabled = errors.New("location services disabled")
	ErrPermissionDenied = errors.New("location permission denied")
	ErrLocationTimeout  = errors.New("location fix timed out")
)

// State 签名流程状态
type State int

const (
	StateAwaitingTech State = iota
	StateAwaitingClient
	StateLocating
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAwaitingTech:
		return "AWAITING_TECH"
	case StateAwaitingClient:
		return "AWAITING_CLIENT"
	case StateLocating:
		return "LOCATING"
	case StateDone:
		return "DONE"
	case StateCancelled:
		return "CANCELLED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// LocationResult 定位能力的返回
type LocationResult struct {
	Success bool
	Data    entity.Coordinate
	Error   error
}

// Locator 设备定位能力
type Locator interface {
	ServicesEnabled(ctx context.Context) bool
	RequestPermission(ctx context.Context) bool
	CurrentPosition(ctx context.Context) LocationResult
}

// Choice 定位失败后用户的选择
type Choice int

const (
	ChoiceRetry Choice = iota
	ChoiceContinueWithoutGPS
)

// Prompter asks the user what to do after a failed fix.
type Prompter interface {
	Prompt(ctx context.Context, reason error) Choice
}

// PromptFunc 函数适配
type PromptFunc func(ctx context.Context, reason error) Choice

func (f PromptFunc) Prompt(ctx context.Context, reason error) Choice { return f(ctx, reason) }

// FinalizeFunc receives both signatures and the coordinate, real or sentinel.
type FinalizeFunc func(ctx context.Context, tech, client string, coord entity.Coordinate) error

// Flow 签名子流程
type Flow struct {
	mu     sync.Mutex
	state  State
	tech   string
	client string
	coord  entity.Coordinate
	// finalize 执行期间不可取消
	finalizing bool

	locator  Locator
	prompter Prompter
	finalize FinalizeFunc
	timeout  time.Duration
	logger   *zap.Logger
}

// NewFlow 创建签名流程
func NewFlow(locator Locator, prompter Prompter, finalize FinalizeFunc) *Flow {
	return &Flow{
		state:    StateAwaitingTech,
		locator:  locator,
		prompter: prompter,
		finalize: finalize,
		timeout:  DefaultLocationTimeout,
		logger:   zap.NewNop(),
	}
}

// SetTimeout 设置定位超时
func (f *Flow) SetTimeout(d time.Duration) {
	if d > 0 {
		f.timeout = d
	}
}

// SetLogger 设置日志
func (f *Flow) SetLogger(l *zap.Logger) {
	if l != nil {
		f.logger = l
	}
}

// State 当前状态
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Coordinate 最终使用的坐标（DONE 之后有效）
func (f *Flow) Coordinate() entity.Coordinate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coord
}

// Capture stores the stroke of the party currently signing and advances;
// the pad starts blank for the next party.
func (f *Flow) Capture(stroke string) error {
	if stroke == "" {
		return ErrEmptyStroke
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateAwaitingTech:
		f.tech = stroke
		f.state = StateAwaitingClient
	case StateAwaitingClient:
		f.client = stroke
		f.state = StateLocating
	default:
		return fmt.Errorf("%w: capture in %s", ErrInvalidState, f.state)
	}
	return nil
}

// Cancel discards both signatures. Nothing is persisted. Once finalize has
// started the save may already be on the server, so Cancel is refused.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizing {
		return ErrFinalizing
	}
	switch f.state {
	case StateDone:
		return ErrAlreadyDone
	case StateCancelled:
		return nil
	}
	f.tech, f.client = "", ""
	f.state = StateCancelled
	return nil
}

// Locate acquires a fix and finalizes. On any failure the prompter decides
// between another attempt and finalizing with the sentinel coordinate.
// If finalize fails the flow stays in LOCATING so the caller can retry.
func (f *Flow) Locate(ctx context.Context) (entity.Coordinate, error) {
	if err := f.expect(StateLocating); err != nil {
		return entity.Coordinate{}, err
	}

	for {
		coord, err := f.acquire(ctx)
		if err == nil {
			return coord, f.complete(ctx, coord)
		}
		if ctx.Err() != nil {
			return entity.Coordinate{}, ctx.Err()
		}
		f.logger.Info("location unavailable", zap.Error(err))

		switch f.prompter.Prompt(ctx, err) {
		case ChoiceContinueWithoutGPS:
			return entity.SentinelCoordinate, f.complete(ctx, entity.SentinelCoordinate)
		default:
			if err := f.expect(StateLocating); err != nil {
				return entity.Coordinate{}, err
			}
		}
	}
}

func (f *Flow) expect(s State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateCancelled {
		return ErrCancelled
	}
	if f.state != s {
		return fmt.Errorf("%w: %s", ErrInvalidState, f.state)
	}
	return nil
}

func (f *Flow) acquire(ctx context.Context) (entity.Coordinate, error) {
	if !f.locator.ServicesEnabled(ctx) {
		return entity.Coordinate{}, ErrServicesDisabled
	}
	if !f.locator.RequestPermission(ctx) {
		return entity.Coordinate{}, ErrPermissionDenied
	}

	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	ch := make(chan LocationResult, 1)
	go func() { ch <- f.locator.CurrentPosition(cctx) }()

	select {
	case res := <-ch:
		if !res.Success {
			if errors.Is(cctx.Err(), context.DeadlineExceeded) {
				return entity.Coordinate{}, ErrLocationTimeout
			}
			if res.Error != nil {
				return entity.Coordinate{}, res.Error
			}
			return entity.Coordinate{}, ErrLocationTimeout
		}
		return res.Data, nil
	case <-cctx.Done():
		return entity.Coordinate{}, ErrLocationTimeout
	}
}

func (f *Flow) complete(ctx context.Context, coord entity.Coordinate) error {
	f.mu.Lock()
	if f.state != StateLocating {
		state := f.state
		f.mu.Unlock()
		if state == StateCancelled {
			return ErrCancelled
		}
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	if f.finalizing {
		f.mu.Unlock()
		return ErrFinalizing
	}
	f.finalizing = true
	tech, client := f.tech, f.client
	f.mu.Unlock()

	err := f.finalize(ctx, tech, client, coord)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizing = false
	if err != nil {
		return err
	}
	f.coord = coord
	f.state = StateDone
	return nil
}

// Bundle builds the atomic signature unit. Either signature missing is a
// contract violation caught before any network call.
func Bundle(tech, client string, coord entity.Coordinate, at time.Time) (*entity.SignatureCapture, error) {
	if tech == "" || client == "" {
		return nil, itemtype.ErrIncompleteSignature
	}
	return &entity.SignatureCapture{
		FirmaTecnico:     tech,
		FirmaCliente:     client,
		UbicacionCaptura: coord,
		FechaCaptura:     at,
	}, nil
}
