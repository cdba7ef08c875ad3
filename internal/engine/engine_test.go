package engine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/train-seat-reservation/internal/ledger"
	"github.com/iliyamo/train-seat-reservation/internal/model"
	"github.com/iliyamo/train-seat-reservation/internal/repository"
)

// memStore is an in-memory stand-in for the MySQL booking repository.
// It enforces the database's uniqueness rule (at most one ACTIVE
// booking per train, seat and date) so the defense-in-depth path can
// be exercised without a server.
type memStore struct {
	mu         sync.Mutex
	nextID     uint64
	bookings   map[uint64]*model.Booking
	countCalls int

	insertErr  error                           // returned by InsertTx when set
	insertWait func(ctx context.Context) error // runs before insert when set
}

func newMemStore() *memStore {
	return &memStore{bookings: make(map[uint64]*model.Booking)}
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func (s *memStore) InsertTx(ctx context.Context, _ *sql.Tx, b *model.Booking) error {
	if s.insertWait != nil {
		if err := s.insertWait(ctx); err != nil {
			return err
		}
	}
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.bookings {
		if other.Status == model.BookingActive &&
			other.TrainID == b.TrainID &&
			other.SeatNumber == b.SeatNumber &&
			other.BookingDate == b.BookingDate {
			return repository.ErrConstraintViolation
		}
	}
	s.nextID++
	b.ID = s.nextID
	b.CreatedAt = time.Now().UTC()
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *memStore) FindByID(ctx context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) FindByToken(ctx context.Context, token string, userID, trainID uint64, date string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.IdempotencyToken != nil && *b.IdempotencyToken == token &&
			b.UserID == userID && b.TrainID == trainID && b.BookingDate == date {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (s *memStore) MarkCancelledTx(ctx context.Context, _ *sql.Tx, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != model.BookingActive {
		return repository.ErrBookingNotFound
	}
	b.Status = model.BookingCancelled
	return nil
}

// OccupiedSeats makes memStore double as the ledger's store.
func (s *memStore) OccupiedSeats(ctx context.Context, trainID uint64, date string) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seats []uint32
	for _, b := range s.bookings {
		if b.Status == model.BookingActive && b.TrainID == trainID && b.BookingDate == date {
			seats = append(seats, b.SeatNumber)
		}
	}
	return seats, nil
}

func (s *memStore) CountActive(ctx context.Context, trainID uint64, date string) (int, error) {
	s.mu.Lock()
	s.countCalls++
	s.mu.Unlock()
	return s.activeCount(trainID, date), nil
}

func (s *memStore) activeCount(trainID uint64, date string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.Status == model.BookingActive && b.TrainID == trainID && b.BookingDate == date {
			n++
		}
	}
	return n
}

type stubUsers struct{ users map[uint64]model.User }

func (s *stubUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

type stubTrains struct{ trains map[uint64]*model.Train }

func (s *stubTrains) GetByID(_ context.Context, id uint64) (*model.Train, error) {
	t, ok := s.trains[id]
	if !ok {
		return nil, repository.ErrTrainNotFound
	}
	return t, nil
}

// fixedClock pins "today" to 2026-08-25 so date validation is stable.
func fixedClock() time.Time {
	return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
}

const (
	testDate = "2026-09-01"
	alice    = uint64(1)
	bob      = uint64(2)
	admin    = uint64(3)
)

func newTestEngine(store *memStore, totalSeats uint32) *Engine {
	users := &stubUsers{users: map[uint64]model.User{
		alice: {ID: alice, Username: "alice"},
		bob:   {ID: bob, Username: "bob"},
		admin: {ID: admin, Username: "root", IsAdmin: true},
	}}
	trains := &stubTrains{trains: map[uint64]*model.Train{
		1: {ID: 1, TrainNumber: "12951", Source: "delhi", Destination: "mumbai", TotalSeats: totalSeats},
	}}
	e := New(users, trains, store, ledger.New(store))
	e.Clock = fixedClock
	return e
}

func TestBookSpecificSeat(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, 3)

	b, err := e.Book(context.Background(), BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 2})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if b.SeatNumber != 2 || b.Status != model.BookingActive {
		t.Errorf("booking = seat %d status %s, want seat 2 ACTIVE", b.SeatNumber, b.Status)
	}
	// Same seat again loses.
	if _, err := e.Book(context.Background(), BookRequest{UserID: bob, TrainID: 1, Date: testDate, Seat: 2}); !errors.Is(err, repository.ErrSeatTaken) {
		t.Errorf("rebook taken seat = %v, want ErrSeatTaken", err)
	}
	// Same seat on another date is fine.
	if _, err := e.Book(context.Background(), BookRequest{UserID: bob, TrainID: 1, Date: "2026-09-02", Seat: 2}); err != nil {
		t.Errorf("book other date = %v, want success", err)
	}
}

func TestBookValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     BookRequest
		wantErr error
	}{
		{name: "unknown user", req: BookRequest{UserID: 99, TrainID: 1, Date: testDate, Seat: 1}, wantErr: repository.ErrUserNotFound},
		{name: "unknown train", req: BookRequest{UserID: alice, TrainID: 99, Date: testDate, Seat: 1}, wantErr: repository.ErrTrainNotFound},
		{name: "garbage date", req: BookRequest{UserID: alice, TrainID: 1, Date: "next tuesday", Seat: 1}, wantErr: repository.ErrInvalidDate},
		{name: "past date", req: BookRequest{UserID: alice, TrainID: 1, Date: "2026-08-24", Seat: 1}, wantErr: repository.ErrInvalidDate},
		{name: "seat far beyond capacity", req: BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 99}, wantErr: repository.ErrOutOfRange},
		{name: "seat just past capacity", req: BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 4}, wantErr: repository.ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(newMemStore(), 3)
			if _, err := e.Book(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Book() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBookSameDayAllowed(t *testing.T) {
	e := newTestEngine(newMemStore(), 3)
	// Travel on the clock's own day is not "in the past".
	if _, err := e.Book(context.Background(), BookRequest{UserID: alice, TrainID: 1, Date: "2026-08-25", Seat: 1}); err != nil {
		t.Fatalf("same-day booking = %v, want success", err)
	}
}

func TestBookAnyAssignsLowestSeat(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, 3)
	ctx := context.Background()

	if _, err := e.Book(ctx, BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 1}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	b, err := e.Book(ctx, BookRequest{UserID: bob, TrainID: 1, Date: testDate})
	if err != nil {
		t.Fatalf("auto-assign: %v", err)
	}
	if b.SeatNumber != 2 {
		t.Errorf("auto-assigned seat = %d, want 2 (lowest free)", b.SeatNumber)
	}
}

func TestBookFullTrain(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, 1)
	ctx := context.Background()

	if _, err := e.Book(ctx, BookRequest{UserID: alice, TrainID: 1, Date: testDate}); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := e.Book(ctx, BookRequest{UserID: bob, TrainID: 1, Date: testDate}); !errors.Is(err, repository.ErrTrainFull) {
		t.Fatalf("booking on full train = %v, want ErrTrainFull", err)
	}
	// Auto-assignment consults the active count so a full train is
	// rejected before the ledger is touched.
	if store.countCalls == 0 {
		t.Error("expected the active-count capacity check to run")
	}
}

func TestBookIdempotency(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, 3)
	ctx := context.Background()
	req := BookRequest{UserID: alice, TrainID: 1, Date: testDate, IdempotencyToken: "retry-123"}

	first, err := e.Book(ctx, req)
	if err != nil {
		t.Fatalf("first book: %v", err)
	}
	second, err := e.Book(ctx, req)
	if err != nil {
		t.Fatalf("replayed book: %v", err)
	}
	if first.ID != second.ID || first.SeatNumber != second.SeatNumber {
		t.Errorf("replay returned booking %d seat %d, want %d seat %d",
			second.ID, second.SeatNumber, first.ID, first.SeatNumber)
	}
	if n := store.activeCount(1, testDate); n != 1 {
		t.Errorf("active bookings = %d, want 1 (one seat consumed)", n)
	}
}

func TestBookPersistenceFailureReleasesClaim(t *testing.T) {
	store := newMemStore()
	store.insertErr = errors.New("disk on fire")
	e := newTestEngine(store, 3)
	ctx := context.Background()

	_, err := e.Book(ctx, BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 1})
	if !errors.Is(err, repository.ErrPersistenceFailed) {
		t.Fatalf("book with failing store = %v, want ErrPersistenceFailed", err)
	}
	// The compensating release must have freed the seat.
	store.insertErr = nil
	if _, err := e.Book(ctx, BookRequest{UserID: bob, TrainID: 1, Date: testDate, Seat: 1}); err != nil {
		t.Fatalf("rebook after compensation = %v, want success", err)
	}
}

func TestBookTimeoutRollsBack(t *testing.T) {
	store := newMemStore()
	store.insertWait = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	e := newTestEngine(store, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Book(ctx, BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 1})
	if !errors.Is(err, repository.ErrTimeout) {
		t.Fatalf("timed-out book = %v, want ErrTimeout", err)
	}
	if n := store.activeCount(1, testDate); n != 0 {
		t.Errorf("active bookings after timeout = %d, want 0", n)
	}
	// No claim survives either.
	store.insertWait = nil
	free, err := e.Availability(context.Background(), 1, testDate)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(free) != 2 {
		t.Errorf("free seats after timeout = %v, want both seats free", free)
	}
}

func TestCancelAuthorization(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, 3)
	ctx := context.Background()

	b, err := e.Book(ctx, BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 1})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := e.Cancel(ctx, b.ID, bob); !errors.Is(err, repository.ErrForbidden) {
		t.Errorf("cancel by stranger = %v, want ErrForbidden", err)
	}
	if err := e.Cancel(ctx, b.ID, admin); err != nil {
		t.Errorf("cancel by admin = %v, want success", err)
	}
	// Cancelling again is a harmless no-op.
	if err := e.Cancel(ctx, b.ID, alice); err != nil {
		t.Errorf("double cancel = %v, want nil", err)
	}
	if err := e.Cancel(ctx, 999, alice); !errors.Is(err, repository.ErrBookingNotFound) {
		t.Errorf("cancel missing booking = %v, want ErrBookingNotFound", err)
	}
}

func TestCancelThenRebookSameSeat(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, 2)
	ctx := context.Background()

	b, err := e.Book(ctx, BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 2})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := e.Cancel(ctx, b.ID, alice); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	rebooked, err := e.Book(ctx, BookRequest{UserID: bob, TrainID: 1, Date: testDate, Seat: 2})
	if err != nil {
		t.Fatalf("rebook cancelled seat = %v, want success", err)
	}
	if rebooked.SeatNumber != 2 {
		t.Errorf("rebooked seat = %d, want 2", rebooked.SeatNumber)
	}
	// The cancelled row stays behind for audit.
	old, err := store.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("find cancelled booking: %v", err)
	}
	if old.Status != model.BookingCancelled {
		t.Errorf("old booking status = %s, want CANCELLED", old.Status)
	}
}

func TestConcurrentBookingsOneSeat(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		user := []uint64{alice, bob}[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Book(context.Background(), BookRequest{UserID: user, TrainID: 1, Date: testDate})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, fulls int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, repository.ErrTrainFull):
			fulls++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || fulls != 1 {
		t.Errorf("wins=%d fulls=%d, want exactly one of each", wins, fulls)
	}
	if n := store.activeCount(1, testDate); n != 1 {
		t.Errorf("active bookings = %d, want 1", n)
	}
}

func TestCapacityNeverExceededUnderLoad(t *testing.T) {
	const seats = 4
	const workers = 24
	store := newMemStore()
	e := newTestEngine(store, seats)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Book(context.Background(), BookRequest{UserID: alice, TrainID: 1, Date: testDate})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, repository.ErrTrainFull), errors.Is(err, repository.ErrSeatTaken):
			// Losing under heavy contention is expected.
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != seats {
		t.Errorf("successful bookings = %d, want %d", wins, seats)
	}
	if n := store.activeCount(1, testDate); n != seats {
		t.Errorf("active bookings = %d, want %d", n, seats)
	}
}

func TestConcurrentClaimsSameSeat(t *testing.T) {
	const workers = 16
	store := newMemStore()
	e := newTestEngine(store, 8)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Book(context.Background(), BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 5})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, repository.ErrSeatTaken):
			losses++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != workers-1 {
		t.Errorf("wins=%d losses=%d, want 1 and %d", wins, losses, workers-1)
	}
}

func TestAvailability(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, 3)
	ctx := context.Background()

	if _, err := e.Book(ctx, BookRequest{UserID: alice, TrainID: 1, Date: testDate, Seat: 2}); err != nil {
		t.Fatalf("book: %v", err)
	}
	free, err := e.Availability(ctx, 1, testDate)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(free) != 2 || free[0] != 1 || free[1] != 3 {
		t.Errorf("free seats = %v, want [1 3]", free)
	}
	if _, err := e.Availability(ctx, 99, testDate); !errors.Is(err, repository.ErrTrainNotFound) {
		t.Errorf("availability of unknown train = %v, want ErrTrainNotFound", err)
	}
	if _, err := e.Availability(ctx, 1, "nonsense"); !errors.Is(err, repository.ErrInvalidDate) {
		t.Errorf("availability with bad date = %v, want ErrInvalidDate", err)
	}
}
