package repo

import (
	"context"
	"time"

	"stageline/internal/domain"
)

// Directory rows are written by the CRUD layer; the pipeline only joins them.

func (r Repo) UpsertActor(ctx context.Context, a domain.DirectoryActor, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO actors(id,tenant_id,name,email,avatar_url,created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, email=excluded.email, avatar_url=excluded.avatar_url`,
		a.ID, a.TenantID, a.Name, nullable(a.Email), nullable(a.AvatarURL), formatTime(at))
	return err
}

func (r Repo) UpsertCustomer(ctx context.Context, c domain.Customer, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO customers(id,tenant_id,name,phone,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, phone=excluded.phone`,
		c.ID, c.TenantID, c.Name, nullable(c.Phone), formatTime(at))
	return err
}

func (r Repo) UpsertVehicle(ctx context.Context, v domain.Vehicle, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO vehicles(id,tenant_id,customer_id,plate,brand,model,created_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET customer_id=excluded.customer_id, plate=excluded.plate, brand=excluded.brand, model=excluded.model`,
		v.ID, v.TenantID, nullable(v.CustomerID), v.Plate, nullable(v.Brand), nullable(v.Model), formatTime(at))
	return err
}
