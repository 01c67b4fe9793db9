package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"sat-dispatch-backend/internal/model"
)

// AlertSender defines the interface for sending a web push notification.
type AlertSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of AlertSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// AlertJob is one emergency fan-out: the order and the technicians whose
// devices should be alerted. Eligibility was decided when the order opened.
type AlertJob struct {
	OrderID       int64
	TechnicianIDs []int64
}

// alertPayload is the push message shape the device ingestor consumes.
type alertPayload struct {
	Type   string `json:"type"`
	SAT    string `json:"SAT"`
	Client string `json:"client,omitempty"`
}

// WorkerPool manages a pool of workers for sending emergency alerts.
type WorkerPool struct {
	size    int
	jobs    chan AlertJob
	db      *gorm.DB
	webpush *webpush.Options
	sender  AlertSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan AlertJob, size), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Alert worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Alert worker %d processing order %d", id, job.OrderID)
			wp.sendAlertsForOrder(ctx, job)
		case <-ctx.Done():
			log.Printf("Alert worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(job AlertJob) {
	wp.jobs <- job
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan AlertJob {
	return wp.jobs
}

// sendAlertsForOrder loads the push tokens of the job's technicians and
// alerts every registered device.
func (wp *WorkerPool) sendAlertsForOrder(ctx context.Context, job AlertJob) {
	if len(job.TechnicianIDs) == 0 {
		return
	}

	var tokens []model.PushToken
	err := wp.db.WithContext(ctx).
		Where("technician_id IN ?", job.TechnicianIDs).
		Find(&tokens).Error
	if err != nil {
		log.Printf("Error fetching push tokens for order %d: %v", job.OrderID, err)
		return
	}

	if len(tokens) == 0 {
		log.Printf("No registered devices for order %d, nobody alerted", job.OrderID)
		return
	}

	payload := alertPayload{
		Type: "emergency",
		SAT:  strconv.FormatInt(job.OrderID, 10),
	}

	// Best effort: the alert still goes out without the client name.
	var order model.EmergencyOrder
	if err := wp.db.WithContext(ctx).Preload("Client").First(&order, job.OrderID).Error; err != nil {
		log.Printf("Error fetching order %d for alert payload: %v", job.OrderID, err)
	} else {
		payload.Client = order.Client.Name
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling alert payload for order %d: %v", job.OrderID, err)
		return
	}

	log.Printf("Sending %d alerts for order %d", len(tokens), job.OrderID)
	for _, token := range tokens {
		wp.sendAlert(ctx, token, body)
	}
}

// sendAlert sends a single web push notification.
func (wp *WorkerPool) sendAlert(ctx context.Context, token model.PushToken, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: token.Endpoint,
		Keys: webpush.Keys{
			P256dh: token.P256DH,
			Auth:   token.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending alert to %s: %v", token.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired tokens
	if resp.StatusCode == 410 {
		log.Printf("Push token for endpoint %s is expired. Deleting.", token.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&token).Error; err != nil {
			log.Printf("Failed to delete expired push token %s: %v", token.Endpoint, err)
		}
	}
}
