package util

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gorilla/websocket"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML file and unmarshals it into a struct of type T.
func LoadConfig[T any](filepath string) (*T, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config T
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	return &config, nil
}

// SendJSON marshals data and writes it to the WebSocket connection as a
// single text message.
func SendJSON(conn *websocket.Conn, data interface{}) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("error writing message: %w", err)
	}
	return nil
}

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount as a grouped dollar figure for ledger
// descriptions and notifications, e.g. 24750 -> "$24,750".
func FormatMoney(amount float64) string {
	if amount == float64(int64(amount)) {
		return moneyPrinter.Sprintf("$%d", int64(amount))
	}
	return moneyPrinter.Sprintf("$%.2f", amount)
}
