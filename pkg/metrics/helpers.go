package metrics

// Package-level helpers delegate to the global manager so call sites stay
// one-liners.

// Engagement pipeline.

func RecordEventProcessed() {
	globalManager.eventsProcessed.Inc()
}

func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

func RecordEventRejected() {
	globalManager.eventsRejected.Inc()
}

func RecordLedgerAppend() {
	globalManager.ledgerAppends.Inc()
}

func RecordCounterIncrementLatency(latencyMs float64) {
	globalManager.counterIncLatency.Observe(latencyMs)
}

// Ranking and cache.

func RecordRankLatency(latencyMs float64) {
	globalManager.rankLatency.Observe(latencyMs)
}

func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// Store and index.

func UpdateClipsTotal(count int) {
	globalManager.clipsTotal.Set(float64(count))
}

func UpdateIndexSize(count int) {
	globalManager.indexSize.Set(float64(count))
}

func RecordRebuild(durationMs float64) {
	globalManager.rebuilds.Inc()
	globalManager.rebuildDuration.Observe(durationMs)
}

// Queue.

func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

func UpdateQueueUtilization(ratio float64) {
	globalManager.queueUtilization.Set(ratio)
}

func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// Workers.

func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP.

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
}

// Errors.

func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// System.

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemory.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutines.Set(float64(count))
}
