package options

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"urdfpanel/internal/logging"
)

// Store persists Options as YAML and reports external edits.
type Store struct {
	path string
	log  logging.Log

	mu      sync.Mutex
	current Options
	watcher *file.File
}

func NewStore(path string, log logging.Log) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("options path %s: %w", path, err)
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Store{path: abs, log: log, current: Defaults()}, nil
}

func (s *Store) Path() string { return s.path }

// Current returns the last loaded or saved options.
func (s *Store) Current() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Load reads the file. A missing file yields Defaults.
func (s *Store) Load() (Options, error) {
	o, err := s.read()
	if err != nil {
		return Defaults(), err
	}
	s.mu.Lock()
	s.current = o
	s.mu.Unlock()
	return o, nil
}

func (s *Store) read() (Options, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(s.path), koanfyaml.Parser()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Defaults(), nil
		}
		return Defaults(), fmt.Errorf("load options %s: %w", s.path, err)
	}
	var o Options
	if err := k.Unmarshal("", &o); err != nil {
		return Defaults(), fmt.Errorf("decode options %s: %w", s.path, err)
	}
	n, ok := o.Normalize()
	if !ok {
		s.log.Warnf("unknown model %q in %s, using %s", o.Model, s.path, n.Model)
	}
	return n, nil
}

// Save writes o atomically and makes it current.
func (s *Store) Save(o Options) error {
	o, ok := o.Normalize()
	if !ok {
		return ErrUnknownVariant
	}
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("save options: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".options-*.yaml")
	if err != nil {
		return fmt.Errorf("save options: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save options: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save options: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save options: %w", err)
	}
	s.current = o
	return nil
}

// Watch calls onChange from a watcher goroutine whenever the file on disk
// changes to options different from Current. The file is created with the
// current options if it does not exist.
func (s *Store) Watch(onChange func(Options)) error {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		if err := s.Save(s.Current()); err != nil {
			return err
		}
	}
	w := file.Provider(s.path)
	err := w.Watch(func(_ interface{}, err error) {
		if err != nil {
			s.log.Warnf("watch %s: %v", s.path, err)
			return
		}
		o, err := s.read()
		if err != nil {
			s.log.Warnf("%v", err)
			return
		}
		s.mu.Lock()
		changed := o != s.current
		s.current = o
		s.mu.Unlock()
		if changed {
			s.log.Infof("options changed on disk: model=%s", o.Model)
			onChange(o)
		}
	})
	if err != nil {
		return fmt.Errorf("watch options %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	return nil
}

// Close stops watching.
func (s *Store) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Unwatch()
}
