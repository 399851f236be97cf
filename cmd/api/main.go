package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/openmfi/loancore/pkg/config"
	"github.com/openmfi/loancore/pkg/loan"
	"github.com/openmfi/loancore/pkg/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Server holds the engine instance.
type Server struct {
	engine             *loan.Engine
	storage            store.Storage // Keep a reference to the storage to close it
	defaultPenaltyRate decimal.Decimal
}

func NewServer(s store.Storage, defaultPenaltyRate decimal.Decimal) *Server {
	return &Server{
		engine:             loan.NewEngine(s),
		storage:            s,
		defaultPenaltyRate: defaultPenaltyRate,
	}
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/products", s.createProductHandler).Methods("POST")
	router.HandleFunc("/products/{id}", s.getProductHandler).Methods("GET")

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/approve", s.approveLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/disburse", s.disburseLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/schedule", s.getScheduleHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/repayments", s.listRepaymentsHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/repayments", s.createRepaymentHandler).Methods("POST")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}

var rootCmd = &cobra.Command{
	Use:   "loancore",
	Short: "Microfinance loan lifecycle API server",
	RunE:  runServe,
}

func init() {
	rootCmd.Flags().StringP("config", "c", "", "Path to TOML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	sqliteStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, cfg.DefaultPenaltyRate)

	log.Printf("Server starting on %s", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, server.routes())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
