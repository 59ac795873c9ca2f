package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anicoll/lifesmart-integration/internal/pkg/model"
	"github.com/anicoll/lifesmart-integration/internal/pkg/registry"
)

// ApplyState appends one row per normalized update; the table is a history,
// not a latest-value store.
func (db *Database) ApplyState(ctx context.Context, update model.StateUpdate) error {
	attrs, err := json.Marshal(update.Attributes)
	if err != nil {
		return err
	}
	if _, err := db.conn.Exec(ctx, `
		INSERT INTO states (time_stamp, entity_key, platform, device_name, state, attributes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, time.Now().UTC(), update.EntityKey, string(update.Platform), update.DeviceName, fmt.Sprint(update.State), attrs); err != nil {
		return err
	}
	return nil
}

func (db *Database) RegisterDevice(device *model.Device) error {
	id := registry.EntityKey(device.DevType, device.Agt, device.Me, "")
	_, err := db.conn.Exec(context.Background(), `
		INSERT INTO devices (id, agt, me, devtype, name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name;`,
		id, device.Agt, device.Me, device.DevType, device.Name)
	if err != nil {
		return err
	}

	return nil
}
