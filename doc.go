/*
go-falldetect detects objects falling past a fixed camera, such as items
dropped from building windows or balconies.

Each video frame is segmented against an adaptive per pixel background model
(package bgsegm), the foreground blobs are extracted with morphological
cleanup and connected component labeling (package postprocess), and the
blobs are followed across frames by a Kalman filter based multi object
tracker (package tracker). A track that lives long enough and covers enough
vertical distance is reported as a falling object, with its full motion
trajectory available for rendering (package render).

The pipeline is CPU only and sized for single board computers, it has been
run on RK3588 based boards pinned to the fast cores.

See example code and usage in the example subdirectory.
*/
package falldetect
