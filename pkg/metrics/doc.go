/*
Package metrics exposes Prometheus metrics and HTTP health endpoints for
the master supervisor.

# Metrics

	colony_workers_alive{slot}                     gauge, 1 if the slot's child is running
	colony_worker_restarts_total{slot,reason}       counter, reason is cap|memory|crash
	colony_forks_alive                              gauge
	colony_results_stored_total{backend}            counter
	colony_results_fetched_total{backend,outcome}   counter, outcome is ok|missing|timeout
	colony_canteen_entries                          gauge
	colony_tasks_processed_total{slot}               counter
	colony_rpc_requests_total{method,status}        counter
	colony_rpc_request_duration_seconds{method}     histogram

Handler serves these on whatever path the caller mounts it at
(conventionally /metrics).

# Collector

Collector polls a Source (implemented by the master over its slot
tables) every 15 seconds and republishes worker/fork/canteen occupancy
as gauges, so metrics stay correct even for state the master doesn't
push updates for directly.

# Health endpoints

HealthHandler, ReadyHandler, and LivenessHandler serve JSON health
status. Readiness additionally requires the broker, canteen, and
results backend to have reported healthy via RegisterComponent/
UpdateComponent; liveness only reports that the process is running.
*/
package metrics
