package metrics

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// GPUReader reads one GPU metrics sample. The abstraction exists so
// tests can substitute a fake for nvidia-smi.
type GPUReader interface {
	ReadGPUMetrics() (GPUMetrics, error)
}

// GPUCollectorConfig configures the collection loop.
type GPUCollectorConfig struct {
	// CollectionInterval is how often to sample (default: 5s)
	CollectionInterval time.Duration

	// NvidiaSMIPath is the nvidia-smi executable (default: "nvidia-smi"
	// resolved via PATH)
	NvidiaSMIPath string
}

// DefaultGPUCollectorConfig returns the default configuration.
func DefaultGPUCollectorConfig() GPUCollectorConfig {
	return GPUCollectorConfig{
		CollectionInterval: 5 * time.Second,
		NvidiaSMIPath:      "nvidia-smi",
	}
}

// GPUCollector periodically samples GPU state via nvidia-smi and
// pushes samples into a Store. Collection failures mark the GPU
// unavailable but never stop the loop; worker hosts without a GPU
// simply report gpu_available=false.
type GPUCollector struct {
	mu sync.RWMutex

	config GPUCollectorConfig
	reader GPUReader
	store  *Store

	lastMetrics GPUMetrics
	available   bool
	lastError   error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGPUCollector creates a collector feeding the given store.
func NewGPUCollector(config GPUCollectorConfig, store *Store) *GPUCollector {
	if config.CollectionInterval < time.Second {
		config.CollectionInterval = 5 * time.Second
	}
	if config.NvidiaSMIPath == "" {
		config.NvidiaSMIPath = "nvidia-smi"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &GPUCollector{
		config: config,
		store:  store,
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewGPUCollectorWithReader creates a collector with a custom reader,
// primarily for tests.
func NewGPUCollectorWithReader(config GPUCollectorConfig, reader GPUReader, store *Store) *GPUCollector {
	c := NewGPUCollector(config, store)
	c.reader = reader
	return c
}

// Start begins background collection. Non-blocking.
func (c *GPUCollector) Start() {
	c.wg.Add(1)
	go c.collectLoop()
}

// Stop halts collection and waits for the loop to exit.
func (c *GPUCollector) Stop() {
	c.cancel()
	c.wg.Wait()
}

// IsAvailable reports whether the last sample succeeded.
func (c *GPUCollector) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// LastError returns the most recent collection error, nil if the last
// sample succeeded.
func (c *GPUCollector) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// Current returns the most recent sample.
func (c *GPUCollector) Current() GPUMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

func (c *GPUCollector) collectLoop() {
	defer c.wg.Done()

	c.collectOnce()

	ticker := time.NewTicker(c.config.CollectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.collectOnce()
		}
	}
}

func (c *GPUCollector) collectOnce() {
	var m GPUMetrics
	var err error

	if c.reader != nil {
		m, err = c.reader.ReadGPUMetrics()
	} else {
		m, err = c.readNvidiaSMI()
	}

	c.mu.Lock()
	if err != nil {
		c.available = false
		c.lastError = err
	} else {
		m.SampledAt = time.Now()
		c.available = true
		c.lastError = nil
		c.lastMetrics = m
	}
	current := c.lastMetrics
	available := c.available
	c.mu.Unlock()

	if c.store != nil {
		c.store.UpdateGPU(current, available)
	}
}

func (c *GPUCollector) readNvidiaSMI() (GPUMetrics, error) {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.config.NvidiaSMIPath,
		"--query-gpu=utilization.gpu,temperature.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return GPUMetrics{}, fmt.Errorf("nvidia-smi failed: %w (stderr: %s)", err, stderr.String())
	}

	return parseNvidiaSMIOutput(stdout.String())
}

// parseNvidiaSMIOutput parses one CSV row from nvidia-smi.
func parseNvidiaSMIOutput(output string) (GPUMetrics, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return GPUMetrics{}, fmt.Errorf("empty nvidia-smi output")
	}

	record, err := csv.NewReader(strings.NewReader(output)).Read()
	if err != nil {
		return GPUMetrics{}, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(record) < 4 {
		return GPUMetrics{}, fmt.Errorf("unexpected field count: got %d, expected 4", len(record))
	}

	util, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	if err != nil {
		return GPUMetrics{}, fmt.Errorf("failed to parse utilization: %w", err)
	}
	temp, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return GPUMetrics{}, fmt.Errorf("failed to parse temperature: %w", err)
	}
	memUsedMiB, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return GPUMetrics{}, fmt.Errorf("failed to parse memory used: %w", err)
	}
	memTotalMiB, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil {
		return GPUMetrics{}, fmt.Errorf("failed to parse memory total: %w", err)
	}

	const mibToBytes = 1024 * 1024
	memTotal := int64(memTotalMiB * mibToBytes)
	memUsed := int64(memUsedMiB * mibToBytes)

	return GPUMetrics{
		Utilization: util,
		Temperature: temp,
		MemoryTotal: memTotal,
		MemoryUsed:  memUsed,
		MemoryFree:  memTotal - memUsed,
	}, nil
}
