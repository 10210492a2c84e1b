package sqlite

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/generic"
)

// businessSchema creates every table except the credential table. Column
// names are read by other tools and must not change.
const businessSchema = `
	CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT,
		email TEXT,
		note TEXT,
		has_drawings INTEGER DEFAULT 0,
		has_documents INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS workers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT,
		email TEXT,
		my_number TEXT,
		blood_type TEXT,
		emergency_contact TEXT,
		emergency_phone TEXT,
		emergency_address TEXT,
		note TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS services (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL,
		service_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		site_address TEXT,
		price REAL NOT NULL,
		labor_cost REAL DEFAULT 0,
		status TEXT DEFAULT '作業中',
		start_date DATE,
		end_date DATE,
		completion_date DATE,
		has_trouble INTEGER DEFAULT 0,
		trouble_worker_id INTEGER,
		has_photos INTEGER DEFAULT 0,
		photo_count INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (client_id) REFERENCES clients (id),
		FOREIGN KEY (service_id) REFERENCES services (id),
		FOREIGN KEY (trouble_worker_id) REFERENCES workers (id)
	);

	CREATE TABLE IF NOT EXISTS work_orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER,
		order_number TEXT,
		creation_date DATE,
		work_type TEXT,
		manager_id INTEGER,
		creator_id INTEGER,
		site_name TEXT,
		site_address TEXT,
		management_tel TEXT,
		duty TEXT,
		start_date DATE,
		end_date DATE,
		arrival_time TEXT,
		scheduled_start TEXT,
		scheduled_end TEXT,
		actual_start TEXT,
		actual_end TEXT,
		work_content TEXT,
		contractor_company TEXT,
		contractor_manager TEXT,
		contact_number TEXT,
		signboard_name TEXT,
		arrival_number TEXT,
		arrival_manager TEXT,
		arrival_contact TEXT,
		completion_number TEXT,
		completion_manager TEXT,
		completion_contact TEXT,
		work_details TEXT,
		business_card INTEGER DEFAULT 0,
		vest INTEGER DEFAULT 0,
		digicam TEXT,
		has_report INTEGER DEFAULT 0,
		reports_count INTEGER DEFAULT 0,
		inspector TEXT,
		sampling_place TEXT,
		sampler TEXT,
		chlorine INTEGER DEFAULT 0,
		seal INTEGER DEFAULT 0,
		report_form INTEGER DEFAULT 0,
		worker1 TEXT,
		worker2 TEXT,
		worker3 TEXT,
		worker4 TEXT,
		slip INTEGER DEFAULT 0,
		bill INTEGER DEFAULT 0,
		report INTEGER DEFAULT 0,
		memo TEXT,
		has_water_quality INTEGER DEFAULT 1,
		water_quality_items TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (project_id) REFERENCES projects (id),
		FOREIGN KEY (manager_id) REFERENCES workers (id),
		FOREIGN KEY (creator_id) REFERENCES workers (id)
	);

	CREATE TABLE IF NOT EXISTS project_workers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		worker_id INTEGER NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects (id),
		FOREIGN KEY (worker_id) REFERENCES workers (id),
		UNIQUE(project_id, worker_id)
	);

	CREATE TABLE IF NOT EXISTS project_photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		photo_path TEXT NOT NULL,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (project_id) REFERENCES projects (id)
	);

	-- month 0 is the annual target, 1-12 the monthly ones
	CREATE TABLE IF NOT EXISTS sales_targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		target_amount REAL NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(year, month)
	);

	-- last issued work order sequence per YYYYMM
	CREATE TABLE IF NOT EXISTS order_sequences (
		year_month TEXT PRIMARY KEY,
		last_seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_client ON projects(client_id);
	CREATE INDEX IF NOT EXISTS idx_projects_service ON projects(service_id);
	CREATE INDEX IF NOT EXISTS idx_project_workers_worker ON project_workers(worker_id);
	CREATE INDEX IF NOT EXISTS idx_project_photos_project ON project_photos(project_id);
	CREATE INDEX IF NOT EXISTS idx_work_orders_project ON work_orders(project_id);
`

// columnMigrations add columns that databases created by earlier releases
// lack. A "duplicate column name" failure means the column is present.
var columnMigrations = []string{
	`ALTER TABLE workers ADD COLUMN emergency_address TEXT`,
	`ALTER TABLE workers ADD COLUMN email TEXT`,
	`ALTER TABLE clients ADD COLUMN has_drawings INTEGER DEFAULT 0`,
	`ALTER TABLE clients ADD COLUMN has_documents INTEGER DEFAULT 0`,
	`ALTER TABLE projects ADD COLUMN labor_cost REAL DEFAULT 0`,
	`ALTER TABLE projects ADD COLUMN trouble_worker_id INTEGER REFERENCES workers (id)`,
	`ALTER TABLE projects ADD COLUMN has_photos INTEGER DEFAULT 0`,
	`ALTER TABLE projects ADD COLUMN photo_count INTEGER DEFAULT 0`,
	`ALTER TABLE work_orders ADD COLUMN has_water_quality INTEGER DEFAULT 1`,
	`ALTER TABLE work_orders ADD COLUMN water_quality_items TEXT`,
}

// uniqueIndexes may fail on databases that already hold duplicates; the
// failure is logged and startup continues.
var uniqueIndexes = []struct {
	name string
	ddl  string
}{
	{"idx_work_orders_number", `CREATE UNIQUE INDEX IF NOT EXISTS idx_work_orders_number
		ON work_orders(order_number) WHERE order_number IS NOT NULL AND order_number <> ''`},
	{"idx_user_passwords_user", `CREATE UNIQUE INDEX IF NOT EXISTS idx_user_passwords_user
		ON user_passwords(user_id)`},
}

const credentialSchema = `
	CREATE TABLE IF NOT EXISTS user_passwords (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		password TEXT NOT NULL,
		salt TEXT,
		user_level TEXT DEFAULT 'user',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
`

// Migrate brings the schema up to date. It is safe to call on every start:
// tables are created if missing, columns are added if missing, and business
// data is never dropped. Only the credential table is dropped, and only
// when Options.ResetCredentials is set.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rec.Exec(ctx, businessSchema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	for _, ddl := range columnMigrations {
		_, err := s.rec.Exec(ctx, ddl)
		if isDuplicateColumnError(err) {
			s.logger.Debug("column already present", zap.String("ddl", ddl))
			continue
		}
		if err != nil {
			return fmt.Errorf("migrate column: %w", err)
		}
	}

	if err := s.migrateCredentials(ctx); err != nil {
		return err
	}

	for _, idx := range uniqueIndexes {
		if _, err := s.rec.Exec(ctx, idx.ddl); err != nil {
			if errors.Is(err, generic.ErrDuplicate) || errors.Is(err, generic.ErrConstraint) {
				s.logger.Warn("unique index not created, existing rows conflict",
					zap.String("index", idx.name), zap.Error(err))
				continue
			}
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

func (s *Store) migrateCredentials(ctx context.Context) error {
	if s.opts.ResetCredentials {
		s.logger.Warn("resetting credential table, stored passwords are discarded")
		if _, err := s.rec.Exec(ctx, `DROP TABLE IF EXISTS user_passwords`); err != nil {
			return fmt.Errorf("drop credential table: %w", err)
		}
	}

	exists, err := s.tableExists(ctx, string(generic.TableCredentials))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	s.logger.Info("creating credential table")
	return s.inTx(ctx, func(rs generic.RecordStore) error {
		if _, err := rs.Exec(ctx, credentialSchema); err != nil {
			return fmt.Errorf("create credential table: %w", err)
		}
		if len(s.opts.Bootstrap) == 0 {
			s.logger.Warn("no bootstrap accounts configured, nobody can log in until one is added")
			return nil
		}
		for _, u := range s.opts.Bootstrap {
			cred, err := u.Credential(s.opts.BcryptCost)
			if err != nil {
				return fmt.Errorf("bootstrap account %q: %w", u.UserID, err)
			}
			if err := insertCredential(ctx, rs, cred); err != nil {
				return err
			}
			s.logger.Info("bootstrap account created",
				zap.String("user_id", cred.UserID),
				zap.String("level", string(cred.Level)))
		}
		return nil
	})
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	rows, err := s.rec.Query(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Tables lists the user tables of the database.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Query(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.String("name")
	}
	return names, nil
}

// TableColumns lists the columns of a table as the database reports them.
func (s *Store) TableColumns(ctx context.Context, table generic.Table) ([]string, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("%w: %q", generic.ErrUnknownTable, string(table))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Query(ctx, `SELECT name FROM pragma_table_info(?)`, string(table))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.String("name")
	}
	return names, nil
}
