package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/finbooks-io/ledger-core/internal/config"
	kafkaevents "github.com/finbooks-io/ledger-core/internal/events/kafka"
	"github.com/finbooks-io/ledger-core/internal/interfaces"
	"github.com/finbooks-io/ledger-core/internal/ledger"
	"github.com/finbooks-io/ledger-core/internal/models"
	"github.com/finbooks-io/ledger-core/internal/models/events"
	"github.com/finbooks-io/ledger-core/internal/money"
	"github.com/finbooks-io/ledger-core/internal/storage/memory"
	"github.com/finbooks-io/ledger-core/internal/storage/postgres"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// storeFactory hands a request a storage instance plus its release func.
// Postgres stores own one connection each, so every request gets its own;
// the memory store is shared.
type storeFactory func(ctx context.Context) (interfaces.LedgerStorage, error)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()
	log := logrus.WithField("component", "server")

	var stores storeFactory
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("open database")
		}
		if err := db.Ping(); err != nil {
			log.WithError(err).Fatal("ping database")
		}
		stores = func(ctx context.Context) (interfaces.LedgerStorage, error) {
			return postgres.Open(ctx, db)
		}
		log.Info("using postgres storage")
	} else {
		mem := memory.NewMemoryLedgerStore()
		if err := seedDemoLedger(context.Background(), mem); err != nil {
			log.WithError(err).Fatal("seed demo ledger")
		}
		stores = func(ctx context.Context) (interfaces.LedgerStorage, error) {
			return mem, nil
		}
		log.Info("using in-memory storage with demo ledger 'main'")
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafkaevents.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.WithField("brokers", cfg.KafkaBrokers).Info("kafka publishing enabled")
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	http.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reqLog := log.WithField("request_id", uuid.New().String())

		var req struct {
			Ledger      string `json:"ledger"`
			Description string `json:"description"`
			Entries     []struct {
				Debits []struct {
					Account string `json:"account"`
					Amount  string `json:"amount"`
				} `json:"debits"`
				Credits []struct {
					Account string `json:"account"`
					Amount  string `json:"amount"`
				} `json:"credits"`
			} `json:"entries"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		st, err := stores(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		defer st.Release()

		ledgerID, err := st.GetLedgerIDBySlug(r.Context(), req.Ledger)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		currency, err := st.GetLedgerCurrency(r.Context(), ledgerID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		entries := ledger.DoubleEntries()
		for _, group := range req.Entries {
			var debits, credits []ledger.Entry
			for _, d := range group.Debits {
				e, err := buildEntry(req.Ledger, d.Account, d.Amount, currency)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				debits = append(debits, e)
			}
			for _, c := range group.Credits {
				e, err := buildEntry(req.Ledger, c.Account, c.Amount, currency)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				credits = append(credits, e)
			}
			de, err := ledger.NewDoubleEntry(debits, credits)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			entries = entries.Push(de)
		}

		tx, err := ledger.NewTransaction(req.Ledger, entries, ledger.WithDescription(req.Description))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		persisted, err := st.InsertTransaction(r.Context(), tx)
		if err != nil {
			reqLog.WithError(err).Warn("posting failed")
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		reqLog.WithField("transaction_id", persisted.ID).Info("transaction posted")

		if publisher != nil {
			event := events.TransactionPosted{
				TransactionID: persisted.ID,
				LedgerSlug:    req.Ledger,
				Description:   persisted.Description,
				PostedAt:      persisted.PostedAt,
				OccurredAt:    time.Now().UTC(),
			}
			if err := publisher.Publish(cfg.KafkaTopic, event); err != nil {
				reqLog.WithError(err).Warn("publish failed")
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(persisted)
	})

	http.HandleFunc("/accounts/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		ledgerSlug := r.URL.Query().Get("ledger")
		accountSlug := r.URL.Query().Get("account")
		if ledgerSlug == "" || accountSlug == "" {
			http.Error(w, "ledger and account are mandatory fields", http.StatusBadRequest)
			return
		}

		st, err := stores(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		defer st.Release()

		ref, err := parseAccountRef(ledgerSlug, accountSlug)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		balance, err := st.FetchAccountBalance(r.Context(), ref)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		response := struct {
			Ledger  string `json:"ledger"`
			Account string `json:"account"`
			Balance string `json:"balance"`
		}{
			Ledger:  ledgerSlug,
			Account: ref.AccountSlug(),
			Balance: balance.String(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	log.WithField("port", cfg.Port).Info("starting server")
	log.Fatal(http.ListenAndServe(":"+cfg.Port, nil))
}

// buildEntry parses an account string ("NAME" or "NAME:externalID") and an
// amount in the ledger currency into a ledger entry.
func buildEntry(ledgerSlug, account, amount string, currency *models.LedgerCurrency) (ledger.Entry, error) {
	ref, err := parseAccountRef(ledgerSlug, account)
	if err != nil {
		return ledger.Entry{}, err
	}
	unit, err := money.New(amount, currency.Code, currency.MinimumFractionDigits)
	if err != nil {
		return ledger.Entry{}, err
	}
	return ledger.NewEntry(ref, unit), nil
}

func parseAccountRef(ledgerSlug, account string) (ledger.AccountRef, error) {
	if name, externalID, found := strings.Cut(account, ":"); found {
		return ledger.NewEntityAccountRef(ledgerSlug, name, externalID)
	}
	return ledger.NewSystemAccountRef(ledgerSlug, account)
}

// seedDemoLedger registers the fixtures the in-memory mode serves: a USD
// ledger "main" with a system income account and an entity-scoped
// receivables type.
func seedDemoLedger(ctx context.Context, st interfaces.LedgerStorage) error {
	usd, err := st.InsertCurrency(ctx, models.NewCurrency{Code: "USD", MinimumFractionDigits: 2, Symbol: "$"})
	if err != nil {
		return err
	}
	book, err := st.InsertLedger(ctx, models.NewLedger{Slug: "main", Name: "Main ledger", LedgerCurrencyID: usd.ID})
	if err != nil {
		return err
	}
	income, err := st.InsertAccountType(ctx, models.NewAccountType{
		Slug:          "SYSTEM_INCOME",
		Name:          "System income",
		NormalBalance: models.NormalBalanceCredit,
	})
	if err != nil {
		return err
	}
	receivables, err := st.InsertAccountType(ctx, models.NewAccountType{
		Slug:                  "USER_RECEIVABLES",
		Name:                  "User receivables",
		NormalBalance:         models.NormalBalanceDebit,
		IsEntityLedgerAccount: true,
	})
	if err != nil {
		return err
	}
	if err := st.AssignAccountTypeToLedger(ctx, book.ID, income.ID); err != nil {
		return err
	}
	if err := st.AssignAccountTypeToLedger(ctx, book.ID, receivables.ID); err != nil {
		return err
	}
	_, err = st.InsertAccount(ctx, models.NewAccount{
		LedgerID:            book.ID,
		LedgerAccountTypeID: income.ID,
		Slug:                "SYSTEM_INCOME",
	})
	return err
}
