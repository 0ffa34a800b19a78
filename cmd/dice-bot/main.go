// dice-bot is a throwaway client that exercises a running engine: it
// registers an agent, tails the public event feed, and plays dice until
// its balance runs out or it is stopped.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	baseURL := getenv("ENGINE_URL", "http://localhost:8080")
	wsURL := getenv("FEED_URL", "ws://localhost:8080/ws/feed")
	apiKey := os.Getenv("API_KEY")
	stake, _ := strconv.ParseInt(getenv("STAKE", "50"), 10, 64)

	client := &http.Client{Timeout: 10 * time.Second}

	if apiKey == "" {
		var out struct {
			APIKey string `json:"api_key"`
			Agent  struct {
				ID string `json:"id"`
			} `json:"agent"`
		}
		if err := post(client, baseURL+"/api/agents/register", "",
			map[string]any{"name": fmt.Sprintf("dicebot_%d", time.Now().Unix()%100000)}, &out); err != nil {
			log.Fatal(err)
		}
		apiKey = out.APIKey
		log.Printf("registered %s; ask an operator to verify and fund it", out.Agent.ID)
	}

	go tailFeed(wsURL)

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		target := 40 + rnd.Intn(40)
		var result struct {
			Roll   int   `json:"roll"`
			Won    bool  `json:"won"`
			Payout int64 `json:"payout"`
		}
		err := post(client, baseURL+"/api/agent/dice", apiKey,
			map[string]any{"stake": stake, "target": target}, &result)
		if err != nil {
			log.Printf("dice: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}
		log.Printf("rolled %d against %d: won=%v payout=%d", result.Roll, target, result.Won, result.Payout)
		time.Sleep(2 * time.Second)
	}
}

func tailFeed(wsURL string) {
	for {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			log.Printf("feed dial: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			log.Printf("feed: %s", data)
		}
		conn.Close()
	}
}

func post(client *http.Client, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s: %d %s", url, resp.StatusCode, apiErr.Error)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
