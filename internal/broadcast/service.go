// Package broadcast sends operator SMS broadcasts to every subscriber of a
// network or tower, or to a list of subscribers, through the towers' inbound
// SMS endpoint.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pcarivbts/CommunityCellularManager/internal/models"
)

const (
	SendToNetwork = "network"
	SendToTower   = "tower"
	SendToIMSI    = "imsi"

	// Sender is the short code broadcasts appear to come from.
	Sender = "0000"
	// AllSubscribers addresses every subscriber camped on a tower.
	AllSubscribers = "*"
)

const (
	MsgSent        = "Broadcast SMS sent successfully"
	MsgEnterIMSI   = "Enter Subscriber IMSI number."
	MsgInvalidData = "Invalid request data."
)

// Request is the broadcast form as posted by the console.
type Request struct {
	SendTo    string `form:"sendto"`
	NetworkID string `form:"network_id"`
	TowerID   string `form:"tower_id"`
	IMSI      string `form:"imsi"`
	Message   string `form:"message"`
}

// Response is always returned with status 200; Status tells the console
// whether to show a success or a failure banner.
type Response struct {
	Status   string      `json:"status"`
	Messages []string    `json:"messages"`
	IMSI     []string    `json:"imsi"`
	Sent     interface{} `json:"sent"`
}

func failed() Response {
	return Response{Status: "failed", Messages: []string{}, IMSI: []string{}, Sent: ""}
}

type recipient struct {
	URL   string `json:"url"`
	To    string `json:"to"`
	MsgID string `json:"msgid"`
}

type Service struct {
	db    *gorm.DB
	queue *Dispatcher
	log   zerolog.Logger
}

func NewService(db *gorm.DB, queue *Dispatcher, log zerolog.Logger) *Service {
	return &Service{db: db, queue: queue, log: log}
}

// Send resolves the recipients of a broadcast and queues one POST per
// reachable tower or subscriber. The returned error is only set for storage
// or queue failures; form problems are reported in the Response.
func (s *Service) Send(ctx context.Context, req Request) (Response, error) {
	resp := failed()
	networkID := parseID(req.NetworkID)

	var recipients []recipient
	switch req.SendTo {
	case SendToNetwork, SendToTower:
		towers, err := s.towers(ctx, req, networkID)
		if err != nil {
			return resp, err
		}
		for _, bts := range towers {
			if bts.InboundURL != "" {
				recipients = append(recipients, recipient{URL: smsEndpoint(bts.InboundURL), To: AllSubscribers})
			}
		}
	case SendToIMSI:
		subs, invalid, err := s.subscribers(ctx, req.IMSI, networkID)
		if err != nil {
			return resp, err
		}
		for _, sub := range subs {
			if len(sub.Numbers) == 0 || sub.BTS == nil || sub.BTS.InboundURL == "" {
				continue
			}
			recipients = append(recipients, recipient{URL: smsEndpoint(sub.BTS.InboundURL), To: sub.Numbers[0].Number})
		}
		if err := s.dispatch(ctx, req, networkID, recipients); err != nil {
			return resp, err
		}
		if req.IMSI == "" {
			resp.Messages = append(resp.Messages, MsgEnterIMSI)
			return resp, nil
		}
		if len(invalid) > 0 {
			resp.Messages = append(resp.Messages, strings.Join(invalid, ",")+" does not exist in this network.")
			resp.IMSI = invalid
			resp.Sent = len(subs)
			return resp, nil
		}
		return sent(), nil
	default:
		resp.Messages = append(resp.Messages, MsgInvalidData)
		return resp, nil
	}

	if err := s.dispatch(ctx, req, networkID, recipients); err != nil {
		return resp, err
	}
	return sent(), nil
}

func sent() Response {
	resp := failed()
	resp.Status = "ok"
	resp.Messages = append(resp.Messages, MsgSent)
	return resp
}

// towers are every tower of the network, or the chosen tower.
func (s *Service) towers(ctx context.Context, req Request, networkID int64) ([]models.BTS, error) {
	tx := s.db.WithContext(ctx)
	if req.SendTo == SendToTower && req.TowerID != "" {
		tx = tx.Where("id = ?", parseID(req.TowerID))
	} else {
		tx = tx.Where("network_id = ?", networkID)
	}
	var towers []models.BTS
	if err := tx.Order("id").Find(&towers).Error; err != nil {
		return nil, fmt.Errorf("list towers: %w", err)
	}
	return towers, nil
}

// subscribers looks up each IMSI of a comma list in the network and returns
// the known subscribers and the unknown IMSIs, both in request order.
func (s *Service) subscribers(ctx context.Context, raw string, networkID int64) ([]models.Subscriber, []string, error) {
	if raw == "" {
		return nil, nil, nil
	}
	var found []models.Subscriber
	var invalid []string
	for _, imsi := range strings.Split(raw, ",") {
		var sub models.Subscriber
		err := s.db.WithContext(ctx).
			Preload("Numbers", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
			Preload("BTS").
			Where("imsi = ? AND network_id = ?", imsi, networkID).
			Limit(1).Find(&sub).Error
		if err != nil {
			return nil, nil, fmt.Errorf("lookup subscriber %s: %w", imsi, err)
		}
		if sub.IMSI == "" {
			invalid = append(invalid, imsi)
			continue
		}
		found = append(found, sub)
	}
	return found, invalid, nil
}

// dispatch records the broadcast and queues its deliveries. The row is only
// committed once every delivery is queued, so a rejected broadcast leaves
// neither a row nor queued jobs behind.
func (s *Service) dispatch(ctx context.Context, req Request, networkID int64, recipients []recipient) error {
	if len(recipients) == 0 {
		return nil
	}
	jobs := make([]Job, 0, len(recipients))
	for i := range recipients {
		recipients[i].MsgID = uuid.NewString()
		jobs = append(jobs, Job{URL: recipients[i].URL, Params: url.Values{
			"to":     {recipients[i].To},
			"sender": {Sender},
			"text":   {req.Message},
			"msgid":  {recipients[i].MsgID},
		}})
	}
	targets, err := json.Marshal(recipients)
	if err != nil {
		return err
	}
	entry := models.BroadcastLog{
		MsgID:      uuid.NewString(),
		SendTo:     req.SendTo,
		NetworkID:  networkID,
		TowerID:    parseID(req.TowerID),
		Text:       req.Message,
		Recipients: datatypes.JSON(targets),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record broadcast: %w", err)
		}
		if err := s.queue.EnqueueAll(jobs); err != nil {
			return fmt.Errorf("queue broadcast %s: %w", entry.MsgID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("msgid", entry.MsgID).Str("sendto", req.SendTo).Int("recipients", len(recipients)).Msg("broadcast queued")
	return nil
}

// History returns the most recent broadcasts of a network.
func (s *Service) History(ctx context.Context, networkID int64, limit int) ([]models.BroadcastLog, error) {
	var logs []models.BroadcastLog
	err := s.db.WithContext(ctx).Where("network_id = ?", networkID).
		Order("id DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}
	return logs, nil
}

func smsEndpoint(inbound string) string {
	return inbound + "/endaga_sms"
}

func parseID(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
