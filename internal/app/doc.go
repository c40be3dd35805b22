// Package app composes the ledger layer into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, store wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── account/        # User accounts and profiles
//	│   ├── ledger/         # Ledger entries and movement reasons
//	│   ├── presale/        # Presale order book
//	│   └── deposit/        # Deposit claims and chain observation
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (AccountStore, LedgerStore, ...)
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic (accounts, ledger, presale, ...)
//	├── httpapi/            # HTTP handlers, admin gate, and audit trail
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus collectors
//
// # Responsibilities
//
// The app package wires services to their stores, defines the storage
// interfaces those services depend on, and exposes the HTTP surface. All
// balance movements flow through LedgerStore so the conservation invariant
// (treasury plus circulating equals total supply) is enforced in one place.
//
// # Dependency Direction
//
//	cmd/ledgerd
//	      │
//	      ▼
//	internal/app/runtime (assembly)
//	      │
//	      ├──► internal/app/services (business logic)
//	      ├──► internal/app/storage  (persistence)
//	      └──► internal/chain        (deposit chain RPC)
package app
