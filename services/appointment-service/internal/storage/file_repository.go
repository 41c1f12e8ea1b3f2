package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/model"
)

// FileRepository keeps the whole collection as one JSON array in a single file.
//
// Every mutation re-reads the file, changes the slice in memory and rewrites
// the whole document. There is no locking: two concurrent writers both read
// the old document and the later rewrite wins, silently dropping the other
// change. It is meant for a single low-traffic instance. The rewrite goes
// through a temp file and rename, so readers never see a half-written file.
type FileRepository struct {
	path string
	now  func() time.Time
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path, now: time.Now}
}

func (r *FileRepository) List(_ context.Context) ([]model.Appointment, error) {
	list, err := r.load()
	if err != nil {
		return nil, err
	}
	model.SortNewestFirst(list)
	return list, nil
}

func (r *FileRepository) ListByDate(_ context.Context, date string) ([]model.Appointment, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	list, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]model.Appointment, 0)
	for _, a := range list {
		if a.Date == date {
			out = append(out, a)
		}
	}
	model.SortByTime(out)
	return out, nil
}

func (r *FileRepository) FindByPhone(_ context.Context, phone, date string) (model.Appointment, error) {
	phone, date, err := phoneQuery(phone, date)
	if err != nil {
		return model.Appointment{}, err
	}
	list, err := r.load()
	if err != nil {
		return model.Appointment{}, err
	}
	var matches []model.Appointment
	for _, a := range list {
		if strings.TrimSpace(a.Phone) != phone {
			continue
		}
		if date != "" && a.Date != date {
			continue
		}
		matches = append(matches, a)
	}
	if len(matches) == 0 {
		return model.Appointment{}, model.ErrNotFound
	}
	model.SortNewestFirst(matches)
	return matches[0], nil
}

func (r *FileRepository) Get(_ context.Context, id string) (model.Appointment, error) {
	list, err := r.load()
	if err != nil {
		return model.Appointment{}, err
	}
	if i := indexOf(list, id); i >= 0 {
		return list[i], nil
	}
	return model.Appointment{}, model.ErrNotFound
}

func (r *FileRepository) Sample(_ context.Context) (model.Appointment, error) {
	list, err := r.load()
	if err != nil {
		return model.Appointment{}, err
	}
	if len(list) == 0 {
		return model.Appointment{}, model.ErrNotFound
	}
	return list[0], nil
}

func (r *FileRepository) Create(_ context.Context, draft model.Draft) (model.Appointment, error) {
	appt, err := draft.Build()
	if err != nil {
		return model.Appointment{}, err
	}
	list, err := r.load()
	if err != nil {
		return model.Appointment{}, err
	}
	appt.ID = r.nextID(list)
	list = append(list, appt)
	if err := r.save(list); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *FileRepository) Update(_ context.Context, id string, patch model.Patch) (model.Appointment, error) {
	changes, err := patch.Validate()
	if err != nil {
		return model.Appointment{}, err
	}
	list, err := r.load()
	if err != nil {
		return model.Appointment{}, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return model.Appointment{}, model.ErrNotFound
	}
	merged := list[i].Clone()
	changes.ApplyTo(&merged)
	if err := merged.Validate(); err != nil {
		return model.Appointment{}, err
	}
	list[i] = merged
	if err := r.save(list); err != nil {
		return model.Appointment{}, err
	}
	return merged, nil
}

func (r *FileRepository) Delete(_ context.Context, id string) error {
	list, err := r.load()
	if err != nil {
		return err
	}
	i := indexOf(list, id)
	if i < 0 {
		return model.ErrNotFound
	}
	list = append(list[:i], list[i+1:]...)
	return r.save(list)
}

func (r *FileRepository) DeleteAll(_ context.Context) error {
	return r.save([]model.Appointment{})
}

// Ping reports whether the document can be read and decoded.
func (r *FileRepository) Ping(_ context.Context) error {
	_, err := r.load()
	return err
}

func (r *FileRepository) Close(_ context.Context) error {
	return nil
}

func (r *FileRepository) load() ([]model.Appointment, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Appointment{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []model.Appointment{}, nil
	}

	var list []model.Appointment
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.path, err)
	}
	for i := range list {
		if list[i].Services == nil {
			list[i].Services = []model.Service{}
		}
	}
	return list, nil
}

func (r *FileRepository) save(list []model.Appointment) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal appointments: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", r.path, err)
	}
	return nil
}

// nextID derives the id from the current time in milliseconds, stepping
// forward until it does not collide with an existing record.
func (r *FileRepository) nextID(list []model.Appointment) string {
	n := r.now().UnixMilli()
	for {
		id := strconv.FormatInt(n, 10)
		if indexOf(list, id) < 0 {
			return id
		}
		n++
	}
}

func indexOf(list []model.Appointment, id string) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}
