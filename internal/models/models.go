package models

import (
	"time"

	"gorm.io/datatypes"
)

type UsageEvent struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement;type:bigint unsigned;comment:auto increment id"`
	Date            time.Time `gorm:"not null;index:idx_kind_date,priority:2;index:idx_network_date,priority:2;comment:event time (UTC)"`
	Kind            string    `gorm:"size:64;not null;index:idx_kind_date,priority:1;comment:usage event kind, e.g. outside_sms"`
	NetworkID       int64     `gorm:"not null;index:idx_network_date,priority:1;comment:owning network"`
	BTSID           int64     `gorm:"column:bts_id;index;uniqueIndex:uk_bts_seq,priority:1;comment:tower that produced the event"`
	Seq             *int64    `gorm:"uniqueIndex:uk_bts_seq,priority:2;comment:tower sequence number, null for events not uploaded by a tower"`
	SubscriberIMSI  string    `gorm:"column:subscriber_imsi;size:32;index;comment:subscriber IMSI"`
	Change          int64     `gorm:"not null;default:0;comment:credit delta in millicents, negative for spend"`
	Billsec         int64     `gorm:"not null;default:0;comment:billed call seconds"`
	UploadedBytes   int64     `gorm:"not null;default:0"`
	DownloadedBytes int64     `gorm:"not null;default:0"`
	OldAmt          int64     `gorm:"column:oldamt;not null;default:0;comment:balance before the event"`
	NewAmt          int64     `gorm:"column:newamt;not null;default:0;comment:balance after the event"`
}

func (UsageEvent) TableName() string {
	return "usage_event"
}

type Subscriber struct {
	IMSI         string    `gorm:"column:imsi;primaryKey;size:32"`
	NetworkID    int64     `gorm:"not null;index"`
	BTSID        int64     `gorm:"column:bts_id;index"`
	Role         string    `gorm:"size:32;not null;default:subscriber"`
	State        string    `gorm:"size:32;not null;default:active;index;comment:active, expired, first_expired, blocked"`
	ValidThrough time.Time `gorm:"index"`
	Numbers      []Number  `gorm:"foreignKey:SubscriberIMSI;references:IMSI"`
	BTS          *BTS      `gorm:"foreignKey:BTSID"`
}

func (Subscriber) TableName() string {
	return "subscriber"
}

type Number struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	Number         string `gorm:"size:32;not null;uniqueIndex"`
	SubscriberIMSI string `gorm:"column:subscriber_imsi;size:32;index"`
}

func (Number) TableName() string {
	return "number"
}

type BTS struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	NetworkID  int64  `gorm:"not null;index"`
	Nickname   string `gorm:"size:128"`
	InboundURL string `gorm:"column:inbound_url;size:255;comment:tower API base url, empty when unreachable"`
}

func (BTS) TableName() string {
	return "bts"
}

type SystemEvent struct {
	ID    uint64    `gorm:"primaryKey;autoIncrement"`
	Date  time.Time `gorm:"not null;index"`
	Type  string    `gorm:"size:32;not null;index;comment:bts up / bts down"`
	BTSID int64     `gorm:"column:bts_id;index"`
}

func (SystemEvent) TableName() string {
	return "system_event"
}

type BroadcastLog struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement"`
	MsgID      string         `gorm:"column:msgid;type:char(36);not null;uniqueIndex"`
	SendTo     string         `gorm:"size:16;not null"`
	NetworkID  int64          `gorm:"not null;index"`
	TowerID    int64          `gorm:"not null;default:0"`
	Text       string         `gorm:"type:text;not null"`
	Recipients datatypes.JSON `gorm:"type:json;not null;comment:targets as [{url,to}]"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
}

func (BroadcastLog) TableName() string {
	return "broadcast_log"
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&UsageEvent{}, &Subscriber{}, &Number{}, &BTS{}, &SystemEvent{}, &BroadcastLog{},
	}
}
