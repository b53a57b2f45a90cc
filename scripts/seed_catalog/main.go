// Command seed_catalog loads a JSON file of books into a running
// catalog API instance. It authenticates as the given user, posts each
// book through the public endpoint, and reports a summary. Intended for
// local development and demo environments.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type seedBook struct {
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Category  string `json:"category,omitempty"`
	Condition string `json:"condition,omitempty"`
}

type seedFile struct {
	Books []seedBook `json:"books"`
}

type loginResponse struct {
	Data struct {
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

func main() {
	var (
		baseURL   string
		booksPath string
		email     string
		password  string
		timeout   time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080/api/v1", "Base URL of the catalog API")
	flag.StringVar(&booksPath, "books", filepath.Join("scripts", "seed_catalog", "books.json"), "Path to JSON books file")
	flag.StringVar(&email, "email", "", "Admin email used to authenticate")
	flag.StringVar(&password, "password", "", "Admin password used to authenticate")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if email == "" || password == "" {
		log.Fatal("both -email and -password are required")
	}

	books, err := loadBooks(booksPath)
	if err != nil {
		log.Fatalf("failed to load books: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	token, err := login(client, baseURL, email, password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	var created, failed int
	for _, b := range books {
		if err := createBook(client, baseURL, token, b); err != nil {
			log.Printf("skip %q: %v", b.Title, err)
			failed++
			continue
		}
		created++
	}

	fmt.Printf("Created: %d, Failed: %d\n", created, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func loadBooks(path string) ([]seedBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Books) == 0 {
		return nil, fmt.Errorf("no books defined in %s", path)
	}
	return f.Books, nil
}

func login(client *http.Client, base, email, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(endpoint(base, "/auth/login"), "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if lr.Data.AccessToken == "" {
		return "", fmt.Errorf("login response contained no access token")
	}
	return lr.Data.AccessToken, nil
}

func createBook(client *http.Client, base, token string, b seedBook) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, endpoint(base, "/books"), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
