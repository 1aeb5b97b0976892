package v1

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"dailyforge/internal/models"
	"dailyforge/internal/repository"
	"dailyforge/internal/streak"
)

// memStore is an in-memory handlers.Store with the same sentinels and
// credit-once rules as the Postgres store.
type memStore struct {
	mu sync.Mutex

	// err, when set, fails every call.
	err error

	nextID      int
	users       map[int]*models.User
	rooms       map[int]*models.Room
	members     map[int]map[int]bool // room id -> user ids
	tasks       map[int]*models.Task
	completions map[int]map[int]bool // task id -> user ids
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int]*models.User{},
		rooms:       map[int]*models.Room{},
		members:     map[int]map[int]bool{},
		tasks:       map[int]*models.Task{},
		completions: map[int]map[int]bool{},
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) userCopy(u *models.User) *models.User {
	out := *u
	out.JoinedRooms = []int{}
	for roomID, set := range s.members {
		if set[u.ID] {
			out.JoinedRooms = append(out.JoinedRooms, roomID)
		}
	}
	sort.Ints(out.JoinedRooms)
	return &out
}

func (s *memStore) roomCopy(r *models.Room) models.Room {
	out := *r
	out.JoinedUsers = []int{}
	for userID := range s.members[r.ID] {
		out.JoinedUsers = append(out.JoinedUsers, userID)
	}
	sort.Ints(out.JoinedUsers)
	return out
}

func (s *memStore) taskCopy(t *models.Task) *models.Task {
	out := *t
	out.Analytics.UsersCompleted = []int{}
	for userID := range s.completions[t.ID] {
		out.Analytics.UsersCompleted = append(out.Analytics.UsersCompleted, userID)
	}
	sort.Ints(out.Analytics.UsersCompleted)
	return &out
}

func (s *memStore) findRoom(ref string) *models.Room {
	id, idErr := strconv.Atoi(ref)
	for _, r := range s.rooms {
		if r.RoomID == ref || (idErr == nil && r.ID == id) {
			return r
		}
	}
	return nil
}

func (s *memStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, other := range s.users {
		if other.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	u.ID = s.id()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	u.JoinedRooms = []int{}
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

func (s *memStore) GetUser(_ context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.userCopy(u), nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.Email == email {
			return s.userCopy(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) TouchStreak(_ context.Context, id int, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next, changed := streak.Next(streak.State{Streak: u.Streak, LastActive: u.LastActiveDate}, now)
	if changed {
		u.Streak = next.Streak
		u.LastActiveDate = next.LastActive
	}
	return s.userCopy(u), nil
}

func (s *memStore) JoinRoom(_ context.Context, userID int, ref string) (*models.JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	r := s.findRoom(ref)
	if r == nil {
		return nil, repository.ErrNotFound
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	res := &models.JoinResult{RoomID: r.RoomID}
	if s.members[r.ID] == nil {
		s.members[r.ID] = map[int]bool{}
	}
	if !s.members[r.ID][userID] {
		s.members[r.ID][userID] = true
		u.Points += streak.RoomJoinBonus
		res.Joined = true
	}
	res.Points = u.Points
	res.JoinedRoomsCount = len(s.userCopy(u).JoinedRooms)
	return res, nil
}

func (s *memStore) DeleteUser(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	for roomID, r := range s.rooms {
		if r.CreatedBy == id {
			s.dropRoom(roomID)
		}
	}
	for _, set := range s.members {
		delete(set, id)
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) dropRoom(roomID int) {
	code := s.rooms[roomID].RoomID
	delete(s.members, roomID)
	for taskID, t := range s.tasks {
		if t.RoomID == code {
			delete(s.tasks, taskID)
			delete(s.completions, taskID)
		}
	}
	delete(s.rooms, roomID)
}

func (s *memStore) CreateRoom(_ context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, other := range s.rooms {
		if other.RoomID == r.RoomID {
			return repository.ErrRoomCodeTaken
		}
	}
	r.ID = s.id()
	r.IsActive = true
	r.CreatedAt = time.Now().Add(time.Duration(r.ID) * time.Millisecond)
	r.UpdatedAt = r.CreatedAt
	r.JoinedUsers = []int{}
	stored := *r
	s.rooms[r.ID] = &stored
	return nil
}

func (s *memStore) CountRoomsByOwner(ctx context.Context, userID int) (int, error) {
	rooms, err := s.ListRoomsByOwner(ctx, userID)
	return len(rooms), err
}

func (s *memStore) ListRoomsByOwner(_ context.Context, userID int) ([]models.Room, error) {
	return s.selectRooms(0, func(r *models.Room) bool { return r.CreatedBy == userID })
}

func (s *memStore) BrowseRooms(_ context.Context, category string) ([]models.Room, error) {
	return s.selectRooms(0, func(r *models.Room) bool {
		return r.Privacy == models.PrivacyPublic && r.IsActive && (category == "" || r.Category == category)
	})
}

func (s *memStore) RecentRooms(_ context.Context, limit int) ([]models.Room, error) {
	return s.selectRooms(limit, func(r *models.Room) bool {
		return r.Privacy == models.PrivacyPublic && r.IsActive
	})
}

// selectRooms returns matching rooms newest first, at most limit when limit > 0.
func (s *memStore) selectRooms(limit int, match func(*models.Room) bool) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := []models.Room{}
	for _, r := range s.rooms {
		if match(r) {
			out = append(out, s.roomCopy(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) IncrementRoomViews(_ context.Context, ref string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	r := s.findRoom(ref)
	if r == nil {
		return 0, repository.ErrNotFound
	}
	r.Views++
	return r.Views, nil
}

func (s *memStore) GetRoom(_ context.Context, ref string) (*models.RoomDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	r := s.findRoom(ref)
	if r == nil {
		return nil, repository.ErrNotFound
	}
	d := &models.RoomDetails{Room: s.roomCopy(r)}
	d.JoinedUsersCount = len(d.JoinedUsers)
	if owner, ok := s.users[r.CreatedBy]; ok {
		d.Creator = models.RoomCreator{ID: owner.ID, Username: owner.Username, Email: owner.Email}
	}
	return d, nil
}

func (s *memStore) DeleteRoom(_ context.Context, roomID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.rooms[roomID]; !ok {
		return repository.ErrNotFound
	}
	s.dropRoom(roomID)
	return nil
}

func (s *memStore) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	t.ID = s.id()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	t.Analytics.UsersCompleted = []int{}
	stored := *t
	s.tasks[t.ID] = &stored
	return nil
}

func (s *memStore) ListTasks(_ context.Context, f models.TaskFilter) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := []models.Task{}
	for _, t := range s.tasks {
		if (f.RoomID == "" || t.RoomID == f.RoomID) &&
			(f.Type == "" || string(t.Type) == f.Type) &&
			(f.Status == "" || t.Status == f.Status) {
			out = append(out, *s.taskCopy(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) GetTask(_ context.Context, id int) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.taskCopy(t), nil
}

func (s *memStore) UpdateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	stored, ok := s.tasks[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	analytics := stored.Analytics
	*stored = *t
	stored.Analytics = analytics
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) DeleteTask(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.tasks, id)
	delete(s.completions, id)
	return nil
}

func (s *memStore) TrackTaskClick(_ context.Context, id int) (*models.Analytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	now := time.Now()
	t.Analytics.TaskClicks++
	t.Analytics.LastOpenedAt = &now
	return &s.taskCopy(t).Analytics, nil
}

func (s *memStore) TrackTaskCompletion(_ context.Context, id int, seconds float64, dropped bool) (*models.Analytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := &t.Analytics
	a.Starts++
	if dropped {
		a.DropOffs++
	} else {
		a.Completions++
		a.TotalCompletionTime += seconds
	}
	if a.Completions > 0 {
		a.AvgTimeSpent = a.TotalCompletionTime / float64(a.Completions)
	}
	return &s.taskCopy(t).Analytics, nil
}

func (s *memStore) CompleteTask(_ context.Context, taskID, userID int, timeSpent float64) (*models.CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if s.completions[taskID] == nil {
		s.completions[taskID] = map[int]bool{}
	}
	res := &models.CompletionResult{AlreadyCompleted: s.completions[taskID][userID]}
	if !res.AlreadyCompleted {
		now := time.Now()
		s.completions[taskID][userID] = true
		a := &t.Analytics
		a.Completions++
		a.TotalCompletionTime += timeSpent
		a.AvgTimeSpent = a.TotalCompletionTime / float64(a.Completions)
		a.LastCompletedAt = &now
		res.PointsAwarded = t.Reward()
		u.Points += res.PointsAwarded
	}
	res.UserPoints = u.Points
	res.UserStreak = u.Streak
	res.Analytics = s.taskCopy(t).Analytics
	return res, nil
}
