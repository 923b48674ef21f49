package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

// Manual end-to-end smoke run against a locally started web server with
// dev endpoints enabled (STAKA_APP_ENABLE_DEV_ENDPOINTS=true).
func main() {
	fmt.Println("==========================================")
	fmt.Println("    Test API complet")
	fmt.Println("==========================================")
	fmt.Println()

	fmt.Println("1. Inscription...")
	report(httpPost(baseURL+"/api/register", map[string]any{
		"name":     "Client Test",
		"email":    "client@test.fr",
		"password": "motDePasse8",
	}, ""))

	fmt.Println("\n2. Connexion...")
	loginResp, err := httpPost(baseURL+"/api/login", map[string]any{
		"email":    "client@test.fr",
		"password": "motDePasse8",
	}, "")
	report(loginResp, err)
	token := extractToken(loginResp)

	fmt.Println("\n3. Liste des offres...")
	report(httpGet(baseURL+"/api/packs", ""))

	fmt.Println("\n4. Commande invité...")
	session := fmt.Sprintf("cs_smoke_%d", time.Now().Unix())
	report(httpPost(baseURL+"/api/guest-checkout", map[string]any{
		"name":              "Invité Test",
		"email":             fmt.Sprintf("invite%d@test.fr", time.Now().Unix()),
		"servicePackId":     1,
		"pageCount":         120,
		"description":       "Essai de 120 pages.",
		"checkoutSessionId": session,
	}, ""))

	fmt.Println("\n5. Simulation du paiement...")
	report(httpPost(baseURL+"/payments/dev/simulate", map[string]any{
		"type":          "checkout.session.completed",
		"sessionId":     session,
		"amountTotal":   48000,
		"paymentStatus": "paid",
	}, ""))

	fmt.Println("\n6. Mes commandes...")
	report(httpGet(baseURL+"/api/orders", token))

	fmt.Println("\n7. Ma conversation...")
	report(httpGet(baseURL+"/api/messages", token))

	fmt.Println("\nTerminé.")
}

func report(resp map[string]any, err error) {
	if err != nil {
		fmt.Printf("   échec: %v\n", err)
		return
	}
	fmt.Printf("   réponse: %v\n", resp)
}

func extractToken(resp map[string]any) string {
	data, _ := resp["data"].(map[string]any)
	token, _ := data["token"].(string)
	return token
}

func httpPost(url string, payload map[string]any, token string) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(req)
}

func httpGet(url, token string) (map[string]any, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(req)
}

func do(req *http.Request) (map[string]any, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"status": resp.StatusCode, "body": string(raw)}, nil
	}
	out["status"] = resp.StatusCode
	return out, nil
}
