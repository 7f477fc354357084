package analysis

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"pavssv/internal/config"
	"pavssv/internal/jobs"
	"pavssv/internal/serviceiface"
	"pavssv/internal/store"
)

type AnalysisService struct {
	config       map[string]interface{}
	store        store.Store
	blob         store.BlobStore
	orchestrator *jobs.Orchestrator
}

func NewAnalysisService(cfg map[string]interface{}, st store.Store, blob store.BlobStore, orch *jobs.Orchestrator) serviceiface.Service {
	return &AnalysisService{config: cfg, store: st, blob: blob, orchestrator: orch}
}

func (s *AnalysisService) Name() string {
	return "analysis"
}

func (s *AnalysisService) Start() error {
	s.orchestrator.Start()
	go StartAnalysisService(s.store, s.blob, s.orchestrator)
	return nil
}

func (s *AnalysisService) Stop() error {
	s.orchestrator.Stop()
	return nil
}

func StartAnalysisService(st store.Store, blob store.BlobStore, orch *jobs.Orchestrator) {
	r := mux.NewRouter()

	r.Handle("/analysis/jobs", SubmitJob(orch)).Methods(http.MethodPost)
	r.Handle("/analysis/jobs/{id}", GetJobStatus(st)).Methods(http.MethodGet)
	r.Handle("/analysis/jobs/{id}/artifacts/{kind}", GetArtifact(st, blob)).Methods(http.MethodGet)

	r.HandleFunc("/analysis/hello", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("Hello from Analysis Service"))
	})

	log.Printf("Analysis Service started on :%d", config.AnalysisPort)
	err := http.ListenAndServe(fmt.Sprintf(":%d", config.AnalysisPort), r)
	if err != nil {
		log.Fatalf("Analysis Service failed: %v", err)
	}
}
