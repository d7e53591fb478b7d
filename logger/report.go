package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type flowStat struct {
	messages int64
	bytes    int64
}

var (
	errorsBook     int64
	errorsRPC      int64
	warnsBook      int64
	warnsRPC       int64
	cycleSuccesses int64
	cycleFailures  int64
	rpcCalls       int64
	apiRequests    int64
	flows          sync.Map // map[string]*flowStat
)

func recordWarn(component string) {
	if strings.Contains(component, "rpc") || strings.Contains(component, "slot") {
		atomic.AddInt64(&warnsRPC, 1)
	} else if strings.Contains(component, "book") || strings.Contains(component, "scheduler") || strings.Contains(component, "builder") {
		atomic.AddInt64(&warnsBook, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "rpc") || strings.Contains(component, "slot") {
		atomic.AddInt64(&errorsRPC, 1)
	} else if strings.Contains(component, "book") || strings.Contains(component, "scheduler") || strings.Contains(component, "builder") {
		atomic.AddInt64(&errorsBook, 1)
	}
}

// IncrementCycleSuccess counts one successful refresh cycle.
func IncrementCycleSuccess() {
	atomic.AddInt64(&cycleSuccesses, 1)
}

// IncrementCycleFailure counts one failed refresh cycle.
func IncrementCycleFailure() {
	atomic.AddInt64(&cycleFailures, 1)
}

// IncrementRPCCall counts one ledger RPC round trip of the given response size.
func IncrementRPCCall(size int) {
	atomic.AddInt64(&rpcCalls, 1)
	recordFlow("rpc_call", size)
}

// IncrementAPIRequest counts one served HTTP request of the given payload size.
func IncrementAPIRequest(size int) {
	atomic.AddInt64(&apiRequests, 1)
	recordFlow("api_request", size)
}

// RecordFlow tracks message count and byte volume for a named data flow.
func RecordFlow(name string, size int) {
	recordFlow(name, size)
}

func recordFlow(name string, size int) {
	v, _ := flows.LoadOrStore(name, &flowStat{})
	fs := v.(*flowStat)
	atomic.AddInt64(&fs.messages, 1)
	atomic.AddInt64(&fs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and flow statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	flowData := map[string]map[string]int64{}
	flows.Range(func(k, v any) bool {
		name := k.(string)
		fs := v.(*flowStat)
		flowData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&fs.messages),
			"bytes":    atomic.LoadInt64(&fs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_book":     atomic.LoadInt64(&errorsBook),
		"errors_rpc":      atomic.LoadInt64(&errorsRPC),
		"warns_book":      atomic.LoadInt64(&warnsBook),
		"warns_rpc":       atomic.LoadInt64(&warnsRPC),
		"cycle_successes": atomic.LoadInt64(&cycleSuccesses),
		"cycle_failures":  atomic.LoadInt64(&cycleFailures),
		"rpc_calls":       atomic.LoadInt64(&rpcCalls),
		"api_requests":    atomic.LoadInt64(&apiRequests),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       int64(memStats.Used) / 1024 / 1024,
		"disk_mb":         int64(diskStats.Used) / 1024 / 1024,
		"flows":           flowData,
		"net_bytes_sent":  int64(bytesSent),
		"net_bytes_recv":  int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsBook"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_book"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsRPC"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_rpc"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsBook"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_book"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsRPC"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_rpc"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CycleSuccesses"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["cycle_successes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CycleFailures"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["cycle_failures"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("RPCCalls"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["rpc_calls"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("APIRequests"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["api_requests"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range flowData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
