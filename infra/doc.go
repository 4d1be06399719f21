// Package infra contains technical adapters such as artifact stores,
// dataset loaders and MQTT publishers. These packages should depend
// only on the interfaces defined in the core packages.
package infra
