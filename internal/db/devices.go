package db

import (
	"database/sql"
	"fmt"
	"time"
)

// DeviceRecord is one row of the device inventory: the verdict a scan
// produced for a device, keyed by its maj:min device number. The inventory
// is an audit trail only; classification never reads from it.
type DeviceRecord struct {
	ID            int64
	Devno         string // maj:min
	Devnode       string
	SizeBytes     int64 // 0 when the size could not be read
	Verdict       string
	PoolUUID      string
	DeviceUUID    string
	FSType        string
	PartTableType string
	FirstSeen     time.Time
	LastSeen      time.Time
}

// UpsertDevice inserts or updates a device record
func (d *DB) UpsertDevice(rec *DeviceRecord) error {
	now := time.Now()

	result, err := d.conn.Exec(`
		INSERT INTO devices (
			devno, devnode, size_bytes, verdict, pool_uuid, device_uuid,
			fs_type, part_table_type, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(devno) DO UPDATE SET
			devnode = excluded.devnode,
			size_bytes = COALESCE(excluded.size_bytes, size_bytes),
			verdict = excluded.verdict,
			pool_uuid = excluded.pool_uuid,
			device_uuid = excluded.device_uuid,
			fs_type = excluded.fs_type,
			part_table_type = excluded.part_table_type,
			last_seen = excluded.last_seen
	`,
		rec.Devno, rec.Devnode, nullInt64(rec.SizeBytes), rec.Verdict,
		nullString(rec.PoolUUID), nullString(rec.DeviceUUID),
		nullString(rec.FSType), nullString(rec.PartTableType), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	// Get the ID (either from insert or existing record)
	if rec.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil && id > 0 {
			rec.ID = id
		} else {
			// Was an update, get existing ID
			existing, _ := d.GetDeviceByDevno(rec.Devno)
			if existing != nil {
				rec.ID = existing.ID
			}
		}
	}

	return nil
}

// GetDeviceByDevno returns a device by its maj:min device number
func (d *DB) GetDeviceByDevno(devno string) (*DeviceRecord, error) {
	row := d.conn.QueryRow(`
		SELECT id, devno, devnode, size_bytes, verdict, pool_uuid, device_uuid,
		       fs_type, part_table_type, first_seen, last_seen
		FROM devices WHERE devno = ?
	`, devno)

	rec, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListDevices returns all recorded devices ordered by device number
func (d *DB) ListDevices() ([]*DeviceRecord, error) {
	rows, err := d.conn.Query(`
		SELECT id, devno, devnode, size_bytes, verdict, pool_uuid, device_uuid,
		       fs_type, part_table_type, first_seen, last_seen
		FROM devices ORDER BY devno
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*DeviceRecord
	for rows.Next() {
		rec, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(s scanner) (*DeviceRecord, error) {
	rec := &DeviceRecord{}
	var sizeBytes sql.NullInt64
	var poolUUID, deviceUUID, fsType, partTableType sql.NullString

	err := s.Scan(&rec.ID, &rec.Devno, &rec.Devnode, &sizeBytes, &rec.Verdict,
		&poolUUID, &deviceUUID, &fsType, &partTableType,
		&rec.FirstSeen, &rec.LastSeen)
	if err != nil {
		return nil, err
	}

	rec.SizeBytes = sizeBytes.Int64
	rec.PoolUUID = poolUUID.String
	rec.DeviceUUID = deviceUUID.String
	rec.FSType = fsType.String
	rec.PartTableType = partTableType.String
	return rec, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
