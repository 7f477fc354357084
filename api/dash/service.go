package dash

import (
	"pavssv/internal/serviceiface"
	"pavssv/internal/store"
)

type DashService struct {
	config map[string]interface{}
	store  store.Store
	blob   store.BlobStore
}

func NewDashService(cfg map[string]interface{}, st store.Store, blob store.BlobStore) serviceiface.Service {
	return &DashService{config: cfg, store: st, blob: blob}
}

func (s *DashService) Name() string {
	return "dash"
}

func (s *DashService) Start() error {
	go StartDashService(s.store, s.blob)
	return nil
}

func (s *DashService) Stop() error {
	// Implement stop logic if needed
	return nil
}
