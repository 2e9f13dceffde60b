package mongodb

import "time"

const indexTimeout = 10 * time.Second
