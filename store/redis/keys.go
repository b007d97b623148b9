package redis

// Redis key naming conventions for courier data.
// All keys are prefixed with "courier:" to avoid collisions.

const keyPrefix = "courier:"

// jobKey returns the key for a job entity: courier:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// pendingKey is the Sorted Set indexing pending jobs by due time
// (score = NextRunAt in Unix milliseconds).
const pendingKey = keyPrefix + "pending"

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// seqKey is the counter assigning insertion sequence numbers.
const seqKey = keyPrefix + "seq"

// uniqueKey returns the guard key claimed by a pending unique job:
// courier:unique:{fingerprint}. SET NX on this key makes the insert the
// uniqueness check, which matters when the store is shared across
// processes.
func uniqueKey(fingerprint string) string { return keyPrefix + "unique:" + fingerprint }

// onceLedgerKey is the Hash recording run-once completions
// (fingerprint → completion time).
const onceLedgerKey = keyPrefix + "once"
