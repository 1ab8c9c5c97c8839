// Package harness runs multi-device conformance scenarios against real
// engines.
//
// Every device in a scenario gets its own local store and its own engine;
// all of them share one in-memory shared store and one fake clock. Steps
// drive the engines directly (no background polling) so every run
// produces the same trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: served_order_propagates
//	description: "A served order reaches the device that created it"
//	devices: [tablet, kitchen]
//	config: |
//	  push: rule: #"status == "ready""#
//	steps:
//	  - action: submit
//	    device: tablet
//	    table: "Tavolo 5"
//	    dishes: ["Pizza Margherita"]
//	  - action: sync
//	    device: kitchen
//	  - action: advance
//	    duration: 10s
//	  - action: serve
//	    device: kitchen
//	    order: 1
//	    expect_error: INVALID_TRANSITION
//	assertions:
//	  - type: order_status
//	    device: kitchen
//	    order: 1
//	    status: ready
//	  - type: converged
//
// config is CUE source resolved against the device configuration schema;
// it is shared by every device.
//
// # Step Actions
//
//   - submit, serve, clear: order operations on one device
//   - add_dish, add_drink, remove_dish, remove_drink: menu edits
//   - sync: one sync tick on a device, or on every device in declaration
//     order when device is empty
//   - advance: move the clock; with poll: true every device syncs after
//     each poll interval
//   - fail_storage, restore_storage: break or repair the shared store
//   - restart: stop a device and start a fresh engine on its local store
//
// # Assertion Types
//
//   - order_status, order_count, order_ids, counter, menu
//   - pending_timers, notification_contains
//   - event_count: occurrences of an event type in the trace
//   - converged: every device holds the same orders, counter and menu
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/served.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
