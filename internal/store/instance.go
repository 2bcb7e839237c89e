package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/chartbagapp/chartbag-server/internal/domain"
)

// instanceKey is the singleton key for the server identity record.
var instanceKey = []byte("instance:config")

// ErrInstanceNotFound is returned when no identity record exists yet.
var ErrInstanceNotFound = errors.New("instance not found")

// GetInstance retrieves the server identity record.
func (s *Store) GetInstance() (*domain.Instance, error) {
	var instance domain.Instance
	err := s.get(instanceKey, &instance)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return &instance, nil
}

// InitializeInstance ensures an identity record exists, creating one with
// a fresh ID on first start. The stored version is refreshed when the
// binary was upgraded.
func (s *Store) InitializeInstance(name, version string) (*domain.Instance, error) {
	instance, err := s.GetInstance()
	if err == nil {
		if instance.Version != version {
			instance.Version = version
			if err := s.set(instanceKey, instance); err != nil {
				return nil, fmt.Errorf("update instance version: %w", err)
			}
			s.log.Info("instance version updated", "id", instance.ID, "version", version)
		}
		return instance, nil
	}
	if !errors.Is(err, ErrInstanceNotFound) {
		return nil, err
	}

	instance = &domain.Instance{
		ID:        uuid.NewString(),
		Name:      name,
		Version:   version,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.set(instanceKey, instance); err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	s.log.Info("instance created", "id", instance.ID, "name", name)
	return instance, nil
}
