// aura-mock-engine is a stand-in for real speech hardware when running the
// runtime's exec engine modes. "recognize" prints one canned JSON transcript;
// "speak" reads one JSON utterance from stdin and sleeps for a plausible
// playback duration.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

type transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type utterance struct {
	Text   string  `json:"text"`
	Lang   string  `json:"lang"`
	Voice  string  `json:"voice"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

func main() {
	var (
		text  string
		delay time.Duration
	)
	flag.StringVar(&text, "text", "hello from the mock engine", "Transcript to report in recognize mode")
	flag.DurationVar(&delay, "delay", 200*time.Millisecond, "Simulated capture or playback latency")
	flag.Parse()

	switch flag.Arg(0) {
	case "recognize":
		time.Sleep(delay)
		if err := json.NewEncoder(os.Stdout).Encode(transcript{Text: text, Confidence: 0.95}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "speak":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		var utt utterance
		if err := json.Unmarshal(data, &utt); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		time.Sleep(delay + time.Duration(len(utt.Text))*2*time.Millisecond)
	default:
		fmt.Fprintln(os.Stderr, "usage: aura-mock-engine [flags] recognize|speak")
		os.Exit(2)
	}
}
