package dash

import (
	"fmt"
	"log"
	"net/http"

	"pavssv/internal/config"
	"pavssv/internal/store"
)

func StartDashService(st store.Store, blob store.BlobStore) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dash/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello from Dashboard Service"))
	})

	mux.Handle("/dash/metrics", GetMetrics(st, blob))
	mux.Handle("/dash/compare", CompareMetrics(st, blob))
	mux.Handle("/dash/periods", ListPeriods(st))
	mux.Handle("/dash/details", GetDetails(st, blob))

	log.Printf("Dashboard Service started on :%d", config.DashPort)
	err := http.ListenAndServe(fmt.Sprintf(":%d", config.DashPort), mux)
	if err != nil {
		log.Fatalf("Dashboard Service failed: %v", err)
	}
}
