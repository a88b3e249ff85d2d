package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kvasir/cmd/util"
	"kvasir/server/common"
)

var (
	benchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Load generator for kvasir servers",
		Long:    "",
		PreRunE: processBenchConfig,
		RunE:    runBench,
	}
	benchKeyPrefix = "__bench"
	benchKeySpread = 1000
	benchClients   = 10
	benchRequests  = 10000
	benchValueSize = 64
	benchSkip      = make([]string, 0)
)

func init() {
	// add flags
	key := "clients"
	benchCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent clients"))
	key = "requests"
	benchCmd.Flags().Int(key, 10000, util.WrapString("Total number of requests per benchmark, split across the clients"))
	key = "value-size"
	benchCmd.Flags().Int(key, 64, util.WrapString("Size of the values in bytes (the set-large benchmark uses 100x this)"))
	key = "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "csv"
	benchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	benchClients = viper.GetInt("clients")
	benchRequests = viper.GetInt("requests")
	benchValueSize = viper.GetInt("value-size")
	if skip := viper.GetString("skip"); skip != "" {
		benchSkip = strings.Split(skip, ",")
	}

	return nil
}

func runBench(_ *cobra.Command, _ []string) error {

	fmt.Println("Load generator for kvasir servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Clients: %d\n", benchClients)
	fmt.Printf("Requests: %d\n", benchRequests)
	fmt.Printf("Value Size: %d bytes\n", benchValueSize)
	fmt.Println()

	fmt.Println("starting benchmarks...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	value := make([]byte, benchValueSize)
	largeValue := make([]byte, benchValueSize*100)

	setResult := measure("set", func(key string, _ int) error {
		return kvClient.Set(key, value)
	})
	cleanupKeys("set")
	results["set"] = setResult
	printResult("set", setResult)

	setLargeResult := measure("set-large", func(key string, _ int) error {
		return kvClient.Set(key, largeValue)
	})
	cleanupKeys("set-large")
	results["set-large"] = setLargeResult
	printResult("set-large", setLargeResult)

	fillKeys("get", value)
	getResult := measure("get", func(key string, _ int) error {
		_, _, err := kvClient.Get(key)
		return err
	})
	cleanupKeys("get")
	results["get"] = getResult
	printResult("get", getResult)

	// Reads of keys that were never written measure the miss path
	getMissingResult := measure("get-missing", func(key string, _ int) error {
		_, _, err := kvClient.Get(key)
		return err
	})
	results["get-missing"] = getMissingResult
	printResult("get-missing", getMissingResult)

	fillKeys("delete", value)
	deleteResult := measure("delete", func(key string, _ int) error {
		_, err := kvClient.Delete(key)
		return err
	})
	results["delete"] = deleteResult
	printResult("delete", deleteResult)

	mixedResult := measure("mixed", func(key string, i int) error {
		switch i % 3 {
		case 0:
			return kvClient.Set(key, value)
		case 1:
			_, _, err := kvClient.Get(key)
			return err
		default:
			_, err := kvClient.Delete(key)
			return err
		}
	})
	cleanupKeys("mixed")
	results["mixed"] = mixedResult
	printResult("mixed", mixedResult)

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range benchSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// benchKey returns the i-th key of a client's working set. The set wraps
// around so memory stays bounded however many requests are issued.
func benchKey(test string, client, i int) string {
	return fmt.Sprintf("%s-%s-%d-%d", benchKeyPrefix, test, client, i%benchKeySpread)
}

// measure runs op for the configured total number of requests, split across
// the concurrent clients, and returns the timing as a benchmark result.
func measure(test string, op func(key string, i int) error) testing.BenchmarkResult {
	if shouldSkip(test) {
		return testing.BenchmarkResult{}
	}

	perClient := max(benchRequests/max(benchClients, 1), 1)

	var wg sync.WaitGroup
	start := time.Now()
	for c := 0; c < benchClients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for i := 0; i < perClient; i++ {
				if err := op(benchKey(test, c, i), i); err != nil {
					log.Printf("(%s) - error: %v\n", test, err)
				}
			}
		}(c)
	}
	wg.Wait()

	return testing.BenchmarkResult{N: benchClients * perClient, T: time.Since(start)}
}

// fillKeys preloads the working set of a benchmark so reads and deletes hit
// existing keys.
func fillKeys(test string, value []byte) {
	perClient := min(max(benchRequests/max(benchClients, 1), 1), benchKeySpread)
	for c := 0; c < benchClients; c++ {
		for i := 0; i < perClient; i++ {
			if err := kvClient.Set(benchKey(test, c, i), value); err != nil {
				log.Printf("(%s) - error preloading key: %v\n", test, err)
			}
		}
	}
}

// cleanupKeys removes the working set of a benchmark from the server.
func cleanupKeys(test string) {
	perClient := min(max(benchRequests/max(benchClients, 1), 1), benchKeySpread)
	for c := 0; c < benchClients; c++ {
		for i := 0; i < perClient; i++ {
			if _, err := kvClient.Delete(benchKey(test, c, i)); err != nil {
				log.Printf("(%s) - error deleting key: %v\n", test, err)
			}
		}
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "TimeoutSec", "Connections",
		"Clients", "Requests", "ValueSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Connections),
			strconv.Itoa(benchClients),
			strconv.Itoa(benchRequests),
			strconv.Itoa(benchValueSize),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
