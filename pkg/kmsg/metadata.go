package kmsg

import "github.com/brokercore/kpro/pkg/kbin"

// MetadataKey is the protocol API key for Metadata requests.
const MetadataKey = 3

// MetadataRequestTopic names one topic to fetch metadata for.
type MetadataRequestTopic struct {
	Topic string
}

// MetadataRequest asks for broker, topic, and partition metadata.
// This client always asks for a specific, non-empty topic list: the
// "give me metadata for every topic" form (a nil topic list on the
// wire) is out of scope for discovery, which only ever needs one
// topic's partition leader.
type MetadataRequest struct {
	Version int16
	Topics  []MetadataRequestTopic
}

func (*MetadataRequest) Key() int16            { return MetadataKey }
func (r *MetadataRequest) GetVersion() int16   { return r.Version }
func (r *MetadataRequest) SetVersion(v int16)  { r.Version = v }
func (*MetadataRequest) IsFlexible() bool      { return false }
func (r *MetadataRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendArrayLen(dst, len(r.Topics))
	for _, t := range r.Topics {
		dst = kbin.AppendString(dst, t.Topic)
	}
	return dst
}
func (*MetadataRequest) ResponseKind() Response { return &MetadataResponse{} }

// MetadataResponseBroker is one broker entry of a MetadataResponse.
type MetadataResponseBroker struct {
	NodeID int32
	Host   string
	Port   int32
}

// MetadataResponseTopicPartition is one partition entry of a topic in
// a MetadataResponse.
type MetadataResponseTopicPartition struct {
	ErrorCode int16
	Partition int32
	Leader    int32
}

// MetadataResponseTopic is one topic entry of a MetadataResponse.
type MetadataResponseTopic struct {
	ErrorCode  int16
	Topic      string
	Partitions []MetadataResponseTopicPartition
}

// MetadataResponse describes the brokers, topics, and partitions a
// broker knows about.
type MetadataResponse struct {
	Version int16
	Brokers []MetadataResponseBroker
	Topics  []MetadataResponseTopic
}

func (*MetadataResponse) Key() int16           { return MetadataKey }
func (r *MetadataResponse) GetVersion() int16  { return r.Version }
func (r *MetadataResponse) SetVersion(v int16) { r.Version = v }

func (r *MetadataResponse) ReadFrom(src []byte) error {
	b := kbin.Reader{Src: src}
	for n := b.ArrayLen(); n > 0; n-- {
		var br MetadataResponseBroker
		br.NodeID = b.Int32()
		br.Host = b.String()
		br.Port = b.Int32()
		r.Brokers = append(r.Brokers, br)
	}
	for n := b.ArrayLen(); n > 0; n-- {
		var t MetadataResponseTopic
		t.ErrorCode = b.Int16()
		t.Topic = b.String()
		for pn := b.ArrayLen(); pn > 0; pn-- {
			var p MetadataResponseTopicPartition
			p.ErrorCode = b.Int16()
			p.Partition = b.Int32()
			p.Leader = b.Int32()
			t.Partitions = append(t.Partitions, p)
		}
		r.Topics = append(r.Topics, t)
	}
	return b.Complete()
}
