package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/nodechain/nodechain/pkg/logger"
	"github.com/nodechain/nodechain/pkg/node"
)

// Server is the operator-facing HTTP API: node/wallet status, transaction
// submission, the address book, and the save-request poll the CLI's
// SIGINT handler flips for a front end to notice.
type Server struct {
	router   *mux.Router
	log      *logger.Logger
	state    *node.State
	commands chan<- node.NetworkCommand
	save     *atomic.Bool
	port     uint16
}

// NewServer builds an operator API bound to a shared node state. save is
// flipped true by the process's shutdown handler to signal a pending
// persistence request; GET /api/save_check atomically consumes it.
func NewServer(state *node.State, commands chan<- node.NetworkCommand, save *atomic.Bool, port uint16) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		log:      logger.Default().WithPrefix("api"),
		state:    state,
		commands: commands,
		save:     save,
		port:     port,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/node_status", s.nodeStatusHandler).Methods("GET")
	s.router.HandleFunc("/api/user_status", s.userStatusHandler).Methods("GET")
	s.router.HandleFunc("/api/transaction", s.submitTransactionHandler).Methods("POST")
	s.router.HandleFunc("/api/address_book", s.getAddressBookHandler).Methods("GET")
	s.router.HandleFunc("/api/address_book", s.saveAddressBookHandler).Methods("POST")
	s.router.HandleFunc("/api/save_check", s.saveCheckHandler).Methods("GET")
}

// Start blocks serving the API on its configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf("0.0.0.0:%d", s.port)
	s.log.Info("operator API listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) nodeStatusHandler(w http.ResponseWriter, r *http.Request) {
	height, _ := s.state.Height()
	writeJSON(w, http.StatusOK, NodeStatus{
		Height:     height,
		MempoolLen: s.state.Mempool.Len(),
		Difficulty: s.state.Config.Difficulty,
	})
}

func (s *Server) userStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserStatus{
		Amount: s.state.Wallet.Funds(),
		PK:     fmt.Sprintf("%x", s.state.Wallet.Keypair.PublicKeyHash()),
	})
}

func (s *Server) submitTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, TransactionResponse{Success: false, Message: "malformed request body"})
		return
	}
	req.log(s.log)

	if req.totalSpend() > s.state.Wallet.Funds() {
		writeJSON(w, http.StatusOK, TransactionResponse{Success: false, Message: "insufficient funds"})
		return
	}

	outputs, err := req.outputs()
	if err != nil {
		writeJSON(w, http.StatusOK, TransactionResponse{Success: false, Message: "contains invalid addresses"})
		return
	}

	tx, err := s.state.Wallet.NewTransaction(s.state.Config.Version, outputs, req.Fee)
	if err != nil {
		writeJSON(w, http.StatusOK, TransactionResponse{Success: false, Message: err.Error()})
		return
	}

	select {
	case s.commands <- node.NetworkCommand{Kind: node.CommandTransaction, Transaction: tx}:
	default:
		s.log.Warn("network command channel full, dropping submitted transaction")
	}

	writeJSON(w, http.StatusOK, TransactionResponse{Success: true, Message: "transaction being broadcasted"})
}

func (s *Server) getAddressBookHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, loadAddressBook())
}

func (s *Server) saveAddressBookHandler(w http.ResponseWriter, r *http.Request) {
	var book AddressBook
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]bool{"success": false})
		return
	}
	if err := book.save(); err != nil {
		s.log.Error("save address book: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]bool{"success": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) saveCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"save": s.save.Swap(false)})
}
