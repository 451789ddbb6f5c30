package internal

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"
)

var (
	alerts     []RTPAlert
	alertMutex sync.RWMutex
)

// RTPAlert represents an RTP-related issue detected in real-time
type RTPAlert struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Value       float64   `json:"value"`
	Threshold   float64   `json:"threshold"`
}

// triggerAlert logs an alert and saves it, keeping only the latest 50
func triggerAlert(alertType, description string, value, threshold float64) {
	alert := RTPAlert{
		Timestamp:   time.Now(),
		Type:        alertType,
		Description: description,
		Value:       value,
		Threshold:   threshold,
	}

	alertMutex.Lock()
	alerts = append(alerts, alert)
	if len(alerts) > 50 {
		alerts = alerts[1:] // Keep the latest 50 alerts
	}
	alertMutex.Unlock()

	log.Printf("ALERT: %s - %s (Value: %.2f, Threshold: %.2f)", alertType, description, value, threshold)
}

// GetActiveAlerts API to retrieve all active alerts
func GetActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alertMutex.RLock()
	defer alertMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

// UpdateAlertThresholds updates alert thresholds dynamically
func UpdateAlertThresholds(newConfig AlertSettings) {
	configMutex.Lock()
	config.AlertSettings = newConfig
	configMutex.Unlock()

	log.Println("Updated RTP alert thresholds dynamically.")
}
